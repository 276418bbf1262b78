package grid

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DecodeHeightmap reads a greyscale heightmap (png, bmp or tiff) and returns
// Cells samples in row-major order.
func DecodeHeightmap(r io.Reader) ([]uint16, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("heightmap: %w", err)
	}
	if b := img.Bounds(); b.Dx() < 2 || b.Dy() < 2 {
		return nil, fmt.Errorf("heightmap: %s image too small (%dx%d)", format, b.Dx(), b.Dy())
	}
	return SamplesFromImage(img), nil
}

// SamplesFromImage resamples src onto the grid. 16-bit luminance maps
// directly to sample units; images already at Dimension×Dimension are copied
// without filtering.
func SamplesFromImage(src image.Image) []uint16 {
	out := make([]uint16, Cells)
	b := src.Bounds()
	if b.Dx() == Dimension && b.Dy() == Dimension {
		for z := 0; z < Dimension; z++ {
			for x := 0; x < Dimension; x++ {
				g := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+z)).(color.Gray16)
				out[Index(x, z)] = g.Y
			}
		}
		return out
	}

	dst := image.NewGray16(image.Rect(0, 0, Dimension, Dimension))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	for z := 0; z < Dimension; z++ {
		for x := 0; x < Dimension; x++ {
			out[Index(x, z)] = dst.Gray16At(x, z).Y
		}
	}
	return out
}
