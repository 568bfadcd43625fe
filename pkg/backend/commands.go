package backend

import (
	"fmt"

	"honnef.co/go/safeish"

	"github.com/taigrr/occlude/pkg/rhi"
)

// CommandTag identifies a record in a command stream. Every record is
// laid out as [tag][payload words][payload...], so the dispatcher can
// always find the next record.
type CommandTag uint32

const (
	EndOfCommand        CommandTag = iota // no payload
	BeginContextCommand                   // context index
	DrawCameraCommand                     // view index into the frame
	ScreenshotCommand                     // x, y, width, height, name length, name bytes
	SwapBuffersCommand                    // no payload
)

func (t CommandTag) String() string {
	switch t {
	case EndOfCommand:
		return "EndOfCommand"
	case BeginContextCommand:
		return "BeginContext"
	case DrawCameraCommand:
		return "DrawCamera"
	case ScreenshotCommand:
		return "Screenshot"
	case SwapBuffersCommand:
		return "SwapBuffers"
	default:
		return fmt.Sprintf("CommandTag(%d)", uint32(t))
	}
}

// CommandBuffer encodes the commands of one frame. The front end fills it
// and hands Buf to Backend.Execute.
type CommandBuffer struct {
	Buf []uint32
}

// Reset empties the buffer, keeping its allocation.
func (cb *CommandBuffer) Reset() {
	cb.Buf = cb.Buf[:0]
}

func (cb *CommandBuffer) record(tag CommandTag, payload ...uint32) {
	cb.Buf = append(cb.Buf, uint32(tag), uint32(len(payload)))
	cb.Buf = append(cb.Buf, payload...)
}

// BeginContext makes the context at index current for following commands.
func (cb *CommandBuffer) BeginContext(index int) {
	cb.record(BeginContextCommand, uint32(index))
}

// DrawCamera draws the view at index of the frame.
func (cb *CommandBuffer) DrawCamera(view int) {
	cb.record(DrawCameraCommand, uint32(view))
}

// Screenshot captures a device rectangle into filename.
func (cb *CommandBuffer) Screenshot(x, y, width, height int, filename string) {
	name := packString(filename)
	payload := make([]uint32, 0, 5+len(name))
	payload = append(payload, uint32(x), uint32(y), uint32(width), uint32(height), uint32(len(filename)))
	payload = append(payload, name...)
	cb.record(ScreenshotCommand, payload...)
}

// SwapBuffers presents the back buffer.
func (cb *CommandBuffer) SwapBuffers() {
	cb.record(SwapBuffersCommand)
}

// End terminates the stream. It must be the last record.
func (cb *CommandBuffer) End() {
	cb.Buf = append(cb.Buf, uint32(EndOfCommand))
}

// Bytes returns the stream as bytes in native byte order. The slice aliases
// Buf.
func (cb *CommandBuffer) Bytes() []byte {
	return safeish.SliceCast[[]byte](cb.Buf)
}

// DecodeWords copies a byte stream produced by Bytes back into words.
func DecodeWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of words: %w", len(b), ErrTruncatedStream)
	}
	words := make([]uint32, len(b)/4)
	copy(safeish.SliceCast[[]byte](words), b)
	return words, nil
}

// packString stores s in words, four bytes per word, zero padded.
func packString(s string) []uint32 {
	words := make([]uint32, (len(s)+3)/4)
	copy(safeish.SliceCast[[]byte](words), s)
	return words
}

func unpackString(words []uint32, n int) (string, bool) {
	b := safeish.SliceCast[[]byte](words)
	if n < 0 || n > len(b) {
		return "", false
	}
	return string(b[:n]), true
}

// record is one decoded command.
type record struct {
	tag     CommandTag
	payload []uint32
}

// nextRecord decodes the record at offset and returns the offset just past
// it.
func nextRecord(stream []uint32, offset int) (record, int, error) {
	if offset >= len(stream) {
		return record{}, offset, fmt.Errorf("no terminator after word %d: %w", offset, ErrTruncatedStream)
	}
	tag := CommandTag(stream[offset])
	if tag == EndOfCommand {
		return record{tag: tag}, offset + 1, nil
	}
	if tag > SwapBuffersCommand {
		return record{}, offset, fmt.Errorf("tag %d at word %d: %w", uint32(tag), offset, ErrUnknownCommand)
	}
	if offset+1 >= len(stream) {
		return record{}, offset, fmt.Errorf("%v header at word %d: %w", tag, offset, ErrTruncatedStream)
	}
	n := int(stream[offset+1])
	start := offset + 2
	if n > len(stream)-start {
		return record{}, offset, fmt.Errorf("%v payload of %d words at word %d: %w", tag, n, offset, ErrTruncatedStream)
	}
	return record{tag: tag, payload: stream[start : start+n]}, start + n, nil
}

// Walk calls fn for every record of stream in order, ending with the
// EndOfCommand record. It stops at the first malformed record or when fn
// returns false.
func Walk(stream []uint32, fn func(tag CommandTag, offset int, payload []uint32) bool) error {
	offset := 0
	for {
		rec, next, err := nextRecord(stream, offset)
		if err != nil {
			return err
		}
		if !fn(rec.tag, offset, rec.payload) || rec.tag == EndOfCommand {
			return nil
		}
		offset = next
	}
}

// ScreenshotArgs decodes the payload of a ScreenshotCommand record.
func ScreenshotArgs(payload []uint32) (r rhi.Rect, filename string, err error) {
	if len(payload) < 5 {
		return r, "", fmt.Errorf("screenshot payload of %d words: %w", len(payload), ErrTruncatedStream)
	}
	r = rhi.Rect{
		X: int(int32(payload[0])),
		Y: int(int32(payload[1])),
		W: int(int32(payload[2])),
		H: int(int32(payload[3])),
	}
	name, ok := unpackString(payload[5:], int(payload[4]))
	if !ok {
		return r, "", fmt.Errorf("screenshot name of %d bytes: %w", payload[4], ErrTruncatedStream)
	}
	return r, name, nil
}
