package grid

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestSamplesFromImage_ExactSizeCopies(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, Dimension, Dimension))
	img.SetGray16(3, 7, color.Gray16{Y: 4242})
	img.SetGray16(MaxIndex, MaxIndex, color.Gray16{Y: MaxSample})

	s := SamplesFromImage(img)
	if len(s) != Cells {
		t.Fatalf("len=%d want %d", len(s), Cells)
	}
	if s[Index(3, 7)] != 4242 || s[Index(MaxIndex, MaxIndex)] != MaxSample || s[Index(0, 0)] != 0 {
		t.Fatalf("samples (3,7)=%d corner=%d origin=%d", s[Index(3, 7)], s[Index(MaxIndex, MaxIndex)], s[0])
	}
}

func TestDecodeHeightmap_ScalesUniformImage(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 16, 16))
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			img.SetGray16(x, z, color.Gray16{Y: 2048})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	s, err := DecodeHeightmap(&buf)
	if err != nil {
		t.Fatalf("DecodeHeightmap: %v", err)
	}
	for _, i := range []int{0, Index(540, 540), Cells - 1} {
		// Bilinear weights are truncated, so allow one sample unit.
		if s[i] < 2047 || s[i] > 2048 {
			t.Fatalf("sample %d = %d want ~2048", i, s[i])
		}
	}
}

func TestDecodeHeightmap_RejectsGarbage(t *testing.T) {
	if _, err := DecodeHeightmap(strings.NewReader("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
}
