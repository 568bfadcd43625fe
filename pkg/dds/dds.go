// Package dds reads and writes DirectDraw Surface files with the DX10
// extended header. Images are 2D or cube maps with a full or partial mip
// chain; texels are kept as float RGBA and converted to the stored format
// on write.
package dds

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/taigrr/occlude/pkg/math3d"
)

// Format is a DXGI format code.
type Format uint32

const (
	FormatRGBA32F    Format = 2
	FormatRGBA16F    Format = 10
	FormatR11G11B10F Format = 26
	FormatRGBA8      Format = 28
)

func (f Format) String() string {
	switch f {
	case FormatRGBA32F:
		return "R32G32B32A32_FLOAT"
	case FormatRGBA16F:
		return "R16G16B16A16_FLOAT"
	case FormatR11G11B10F:
		return "R11G11B10_FLOAT"
	case FormatRGBA8:
		return "R8G8B8A8_UNORM"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

// BytesPerTexel returns the stored size of one texel, or 0 for formats
// this package does not handle.
func (f Format) BytesPerTexel() int {
	switch f {
	case FormatRGBA32F:
		return 16
	case FormatRGBA16F:
		return 8
	case FormatR11G11B10F, FormatRGBA8:
		return 4
	default:
		return 0
	}
}

// CubeFaces is the number of faces of a cube map, stored +X, -X, +Y, -Y,
// +Z, -Z.
const CubeFaces = 6

// Surface is one mip level of one face.
type Surface struct {
	Width, Height int
	Texels        []math3d.Vec4
}

// Image is a texture with Faces[face][level]. A 2D texture has one face.
type Image struct {
	Width, Height int
	Cube          bool
	Faces         [][]Surface
}

// NewImage allocates an image with levels mips per face.
func NewImage(w, h, levels int, cube bool) *Image {
	faces := 1
	if cube {
		faces = CubeFaces
	}
	img := &Image{Width: w, Height: h, Cube: cube, Faces: make([][]Surface, faces)}
	for f := range img.Faces {
		img.Faces[f] = make([]Surface, levels)
		for l := range levels {
			lw, lh := math3d.MipDim(w, l), math3d.MipDim(h, l)
			img.Faces[f][l] = Surface{Width: lw, Height: lh, Texels: make([]math3d.Vec4, lw*lh)}
		}
	}
	return img
}

// Levels returns the number of mip levels per face.
func (img *Image) Levels() int {
	if len(img.Faces) == 0 {
		return 0
	}
	return len(img.Faces[0])
}

const (
	magic = 0x20534444 // "DDS "

	headerSize      = 124
	pixelFormatSize = 32

	flagCaps        = 0x1
	flagHeight      = 0x2
	flagWidth       = 0x4
	flagPitch       = 0x8
	flagPixelFormat = 0x1000
	flagMipMapCount = 0x20000

	pfFourCC   = 0x4
	fourCCDX10 = 0x30315844 // "DX10"

	capsComplex = 0x8
	capsTexture = 0x1000
	capsMipMap  = 0x400000

	caps2Cubemap    = 0x200
	caps2AllFaces   = 0xFC00
	dimTexture2D    = 3
	miscTextureCube = 0x4
)

type pixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      uint32
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

type header struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       pixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

type headerDX10 struct {
	Format            uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

var (
	ErrNotDDS            = errors.New("dds: not a DDS file")
	ErrUnsupportedFormat = errors.New("dds: unsupported format")
)

// Encode writes img to w in format f.
func Encode(w io.Writer, img *Image, f Format) error {
	bpt := f.BytesPerTexel()
	if bpt == 0 {
		return fmt.Errorf("encode %v: %w", f, ErrUnsupportedFormat)
	}
	levels := img.Levels()
	if levels == 0 || img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("dds: empty image %dx%d with %d levels", img.Width, img.Height, levels)
	}

	h := header{
		Size:              headerSize,
		Flags:             flagCaps | flagHeight | flagWidth | flagPixelFormat | flagPitch,
		Height:            uint32(img.Height),
		Width:             uint32(img.Width),
		PitchOrLinearSize: uint32(img.Width * bpt),
		MipMapCount:       uint32(levels),
		PixelFormat:       pixelFormat{Size: pixelFormatSize, Flags: pfFourCC, FourCC: fourCCDX10},
		Caps:              capsTexture,
	}
	if levels > 1 {
		h.Flags |= flagMipMapCount
		h.Caps |= capsComplex | capsMipMap
	}
	dx10 := headerDX10{Format: uint32(f), ResourceDimension: dimTexture2D, ArraySize: 1}
	if img.Cube {
		h.Caps |= capsComplex
		h.Caps2 = caps2Cubemap | caps2AllFaces
		dx10.MiscFlag = miscTextureCube
	}

	bw := bufio.NewWriter(w)
	for _, v := range []any{uint32(magic), &h, &dx10} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("dds: write header: %w", err)
		}
	}
	var buf []byte
	for fi, face := range img.Faces {
		for l, s := range face {
			if len(s.Texels) != s.Width*s.Height {
				return fmt.Errorf("dds: face %d level %d has %d texels, want %d", fi, l, len(s.Texels), s.Width*s.Height)
			}
			buf = appendTexels(buf[:0], s.Texels, f)
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("dds: write face %d level %d: %w", fi, l, err)
			}
		}
	}
	return bw.Flush()
}

// Decode reads an image written with the DX10 header in one of the
// handled formats.
func Decode(r io.Reader) (*Image, Format, error) {
	br := bufio.NewReader(r)
	var m uint32
	if err := binary.Read(br, binary.LittleEndian, &m); err != nil {
		return nil, 0, fmt.Errorf("dds: read magic: %w", err)
	}
	if m != magic {
		return nil, 0, ErrNotDDS
	}
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("dds: read header: %w", err)
	}
	if h.Size != headerSize || h.PixelFormat.Flags&pfFourCC == 0 || h.PixelFormat.FourCC != fourCCDX10 {
		return nil, 0, fmt.Errorf("dds: legacy header: %w", ErrUnsupportedFormat)
	}
	var dx10 headerDX10
	if err := binary.Read(br, binary.LittleEndian, &dx10); err != nil {
		return nil, 0, fmt.Errorf("dds: read DX10 header: %w", err)
	}
	f := Format(dx10.Format)
	bpt := f.BytesPerTexel()
	if bpt == 0 {
		return nil, 0, fmt.Errorf("decode %v: %w", f, ErrUnsupportedFormat)
	}
	levels := max(int(h.MipMapCount), 1)
	img := NewImage(int(h.Width), int(h.Height), levels, dx10.MiscFlag&miscTextureCube != 0)
	for fi, face := range img.Faces {
		for l, s := range face {
			buf := make([]byte, len(s.Texels)*bpt)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, 0, fmt.Errorf("dds: read face %d level %d: %w", fi, l, err)
			}
			readTexels(s.Texels, buf, f)
		}
	}
	return img, f, nil
}

// WriteFile encodes img into a new file at path.
func WriteFile(path string, img *Image, f Format) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, img, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadFile decodes the file at path.
func ReadFile(path string) (*Image, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	return Decode(file)
}

func appendTexels(buf []byte, texels []math3d.Vec4, f Format) []byte {
	le := binary.LittleEndian
	for _, t := range texels {
		switch f {
		case FormatRGBA32F:
			buf = le.AppendUint32(buf, math.Float32bits(float32(t.X)))
			buf = le.AppendUint32(buf, math.Float32bits(float32(t.Y)))
			buf = le.AppendUint32(buf, math.Float32bits(float32(t.Z)))
			buf = le.AppendUint32(buf, math.Float32bits(float32(t.W)))
		case FormatRGBA16F:
			buf = le.AppendUint16(buf, PackHalf(float32(t.X)))
			buf = le.AppendUint16(buf, PackHalf(float32(t.Y)))
			buf = le.AppendUint16(buf, PackHalf(float32(t.Z)))
			buf = le.AppendUint16(buf, PackHalf(float32(t.W)))
		case FormatR11G11B10F:
			buf = le.AppendUint32(buf, PackR11G11B10(float32(t.X), float32(t.Y), float32(t.Z)))
		case FormatRGBA8:
			buf = append(buf, unorm8(t.X), unorm8(t.Y), unorm8(t.Z), unorm8(t.W))
		}
	}
	return buf
}

func readTexels(dst []math3d.Vec4, buf []byte, f Format) {
	le := binary.LittleEndian
	for i := range dst {
		switch f {
		case FormatRGBA32F:
			p := buf[i*16:]
			dst[i] = math3d.V4(
				float64(math.Float32frombits(le.Uint32(p))),
				float64(math.Float32frombits(le.Uint32(p[4:]))),
				float64(math.Float32frombits(le.Uint32(p[8:]))),
				float64(math.Float32frombits(le.Uint32(p[12:]))),
			)
		case FormatRGBA16F:
			p := buf[i*8:]
			dst[i] = math3d.V4(
				float64(UnpackHalf(le.Uint16(p))),
				float64(UnpackHalf(le.Uint16(p[2:]))),
				float64(UnpackHalf(le.Uint16(p[4:]))),
				float64(UnpackHalf(le.Uint16(p[6:]))),
			)
		case FormatR11G11B10F:
			r, g, b := UnpackR11G11B10(le.Uint32(buf[i*4:]))
			dst[i] = math3d.V4(float64(r), float64(g), float64(b), 1)
		case FormatRGBA8:
			p := buf[i*4:]
			dst[i] = math3d.V4(float64(p[0])/255, float64(p[1])/255, float64(p[2])/255, float64(p[3])/255)
		}
	}
}

func unorm8(v float64) uint8 {
	return uint8(math3d.Clamp(v, 0, 1)*255 + 0.5)
}
