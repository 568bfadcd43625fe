package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/taigrr/occlude/pkg/math3d"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPackR11G11B10(t *testing.T) {
	one11 := uint32(15 << 6)
	one10 := uint32(15 << 5)
	if got, want := PackR11G11B10(1, 1, 1), one11|one11<<11|one10<<22; got != want {
		t.Fatalf("PackR11G11B10(1,1,1) = %#x, want %#x", got, want)
	}

	tests := []struct {
		name    string
		r, g, b float32
		want    [3]float32
		relTol  float64
	}{
		{"zero", 0, 0, 0, [3]float32{0, 0, 0}, 0},
		{"exact", 0.5, 2, 0.25, [3]float32{0.5, 2, 0.25}, 0},
		{"rounded", 3.3, 100.7, 0.123, [3]float32{3.3, 100.7, 0.123}, 1.0 / 32},
		{"negative clamps to zero", -1, -0.5, -100, [3]float32{0, 0, 0}, 0},
		{"overflow clamps to max", 1e9, 1e9, 1e9, [3]float32{65024, 65024, 64512}, 0},
		{"positive infinity", float32(math.Inf(1)), 1, 1, [3]float32{float32(math.Inf(1)), 1, 1}, 0},
		{"tiny subnormal", 1e-5, 0, 0, [3]float32{1e-5, 0, 0}, 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, g, b := UnpackR11G11B10(PackR11G11B10(tc.r, tc.g, tc.b))
			got := [3]float32{r, g, b}
			for i := range got {
				want := float64(tc.want[i])
				if math.IsInf(want, 1) {
					if !math.IsInf(float64(got[i]), 1) {
						t.Errorf("channel %d = %v, want +Inf", i, got[i])
					}
					continue
				}
				if !near(float64(got[i]), want, tc.relTol*math.Abs(want)) {
					t.Errorf("channel %d = %v, want %v", i, got[i], want)
				}
			}
		})
	}
}

func TestPackHalf(t *testing.T) {
	tests := []struct {
		in   float32
		want uint16
	}{
		{0, 0},
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF},
		{1e6, 0x7BFF},
		{float32(math.Ldexp(1, -24)), 0x0001},
		{float32(math.Inf(-1)), 0xFC00},
	}
	for _, tc := range tests {
		if got := PackHalf(tc.in); got != tc.want {
			t.Errorf("PackHalf(%v) = %#04x, want %#04x", tc.in, got, tc.want)
		}
	}
	if v := UnpackHalf(PackHalf(float32(math.NaN()))); v == v {
		t.Errorf("NaN did not survive a round trip, got %v", v)
	}
	if v := UnpackHalf(0xC000); v != -2 {
		t.Errorf("UnpackHalf(0xc000) = %v, want -2", v)
	}
}

func testCube(size, levels int) *Image {
	img := NewImage(size, size, levels, true)
	for f, face := range img.Faces {
		for l, s := range face {
			for i := range s.Texels {
				s.Texels[i] = math3d.V4(float64(f), float64(l)+0.5, float64(i)/8, 1)
			}
		}
	}
	return img
}

func TestEncodeCubeHeader(t *testing.T) {
	img := testCube(4, 3)
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatR11G11B10F); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()

	// magic + header + DX10 header, then 6 faces of 4x4, 2x2 and 1x1.
	if want := 4 + 124 + 20 + 6*(16+4+1)*4; len(b) != want {
		t.Fatalf("file is %d bytes, want %d", len(b), want)
	}
	if string(b[:4]) != "DDS " {
		t.Fatalf("magic = %q", b[:4])
	}
	le := binary.LittleEndian
	fields := []struct {
		name   string
		offset int
		want   uint32
	}{
		{"size", 4, 124},
		{"height", 12, 4},
		{"width", 16, 4},
		{"mip count", 28, 3},
		{"fourcc", 84, fourCCDX10},
		{"caps", 108, capsTexture | capsComplex | capsMipMap},
		{"caps2", 112, caps2Cubemap | caps2AllFaces},
		{"dxgi format", 128, uint32(FormatR11G11B10F)},
		{"dimension", 132, dimTexture2D},
		{"misc flag", 136, miscTextureCube},
		{"array size", 140, 1},
	}
	for _, f := range fields {
		if got := le.Uint32(b[f.offset:]); got != f.want {
			t.Errorf("%s = %#x, want %#x", f.name, got, f.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		format Format
		tol    float64
	}{
		{FormatRGBA32F, 1e-6},
		{FormatRGBA16F, 1e-2},
		{FormatR11G11B10F, 0.05},
	}
	for _, tc := range tests {
		t.Run(tc.format.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "probe.dds")
			img := testCube(8, 4)
			if err := WriteFile(path, img, tc.format); err != nil {
				t.Fatal(err)
			}
			got, format, err := ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if format != tc.format {
				t.Errorf("format = %v, want %v", format, tc.format)
			}
			if !got.Cube || got.Levels() != 4 || got.Width != 8 {
				t.Fatalf("got cube=%v levels=%d width=%d", got.Cube, got.Levels(), got.Width)
			}
			for f := range img.Faces {
				for l := range img.Faces[f] {
					want, have := img.Faces[f][l], got.Faces[f][l]
					for i := range want.Texels {
						w, h := want.Texels[i], have.Texels[i]
						if !near(w.X, h.X, tc.tol*max(1, w.X)) || !near(w.Y, h.Y, tc.tol*max(1, w.Y)) || !near(w.Z, h.Z, tc.tol*max(1, w.Z)) {
							t.Fatalf("face %d level %d texel %d = %v, want %v", f, l, i, h, w)
						}
					}
				}
			}
		})
	}
}

func TestEncodeRGBA8(t *testing.T) {
	img := NewImage(2, 1, 1, false)
	img.Faces[0][0].Texels[0] = math3d.V4(1, 0.5, 0, 1)
	img.Faces[0][0].Texels[1] = math3d.V4(2, -1, 0.25, 0)
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatRGBA8); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if caps2 := binary.LittleEndian.Uint32(b[112:]); caps2 != 0 {
		t.Errorf("2D texture has caps2 %#x", caps2)
	}
	want := []byte{255, 128, 0, 255, 255, 0, 64, 0}
	if got := b[148:]; !bytes.Equal(got, want) {
		t.Errorf("texels = %v, want %v", got, want)
	}
}

func TestErrors(t *testing.T) {
	img := NewImage(1, 1, 1, false)
	if err := Encode(&bytes.Buffer{}, img, Format(99)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unknown format: got %v", err)
	}
	if _, _, err := Decode(bytes.NewReader([]byte("PNG\x00"))); !errors.Is(err, ErrNotDDS) {
		t.Errorf("bad magic: got %v", err)
	}
	img.Faces[0][0].Texels = nil
	if err := Encode(&bytes.Buffer{}, img, FormatRGBA8); err == nil {
		t.Error("short surface should fail")
	}
}
