package brush

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Load decodes a brush image (png, bmp or tiff) and resamples it into a footprint.
func Load(path string) (*Footprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("brush %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage scales src to Resolution×Resolution. Intensity is the luminance
// premultiplied by alpha, so transparent texels never paint.
func FromImage(src image.Image) *Footprint {
	dst := image.NewRGBA64(image.Rect(0, 0, Resolution, Resolution))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	f := &Footprint{}
	for z := 0; z < Resolution; z++ {
		for x := 0; x < Resolution; x++ {
			g := color.Gray16Model.Convert(dst.RGBA64At(x, z)).(color.Gray16)
			f.data[z*Resolution+x] = float32(g.Y) / 0xffff
		}
	}
	return f
}
