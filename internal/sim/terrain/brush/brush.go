package brush

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"terrasculpt/internal/sim/terrain/grid"
)

// Resolution is the kernel size per axis.
const Resolution = 64

// Footprint is an immutable Resolution×Resolution intensity kernel in row-major
// order (row = Z, column = X). Brush size only stretches it in world space.
type Footprint struct {
	data [Resolution * Resolution]float32
}

func New(values []float32) (*Footprint, error) {
	if len(values) != Resolution*Resolution {
		return nil, fmt.Errorf("brush: got %d values, want %d", len(values), Resolution*Resolution)
	}
	f := &Footprint{}
	for i, v := range values {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			return nil, fmt.Errorf("brush: value %v at %d outside [0,1]", v, i)
		}
		f.data[i] = v
	}
	return f, nil
}

// Uniform returns a footprint with every texel set to v.
func Uniform(v float32) *Footprint {
	f := &Footprint{}
	for i := range f.data {
		f.data[i] = v
	}
	return f
}

// Falloff returns the default round brush: full strength in the middle,
// smoothstepped to zero at the inscribed circle.
func Falloff() *Footprint {
	f := &Footprint{}
	const c = (Resolution - 1) * 0.5
	for z := 0; z < Resolution; z++ {
		for x := 0; x < Resolution; x++ {
			dx, dz := float64(x)-c, float64(z)-c
			d := math.Sqrt(dx*dx+dz*dz) / (Resolution * 0.5)
			t := math.Max(0, math.Min(1, 1-d))
			f.data[z*Resolution+x] = float32(t * t * (3 - 2*t))
		}
	}
	return f
}

func (f *Footprint) At(x, z int) float32 { return f.data[z*Resolution+x] }

// Sample bilinearly filters the kernel at texel coordinates (kx, kz). Neighbour
// lookups are clamped to the kernel, so coordinates past an edge return the edge value.
func (f *Footprint) Sample(kx, kz float64) float64 {
	x0, x1 := clampTexel(math.Floor(kx)), clampTexel(math.Ceil(kx))
	z0, z1 := clampTexel(math.Floor(kz)), clampTexel(math.Ceil(kz))

	a := float64(f.At(x0, z0))
	b := float64(f.At(x1, z0))
	c := float64(f.At(x0, z1))
	d := float64(f.At(x1, z1))

	fx := kx - float64(x0)
	top := a + (b-a)*fx
	bottom := c + (d-c)*fx
	return top + (bottom-top)*(kz-float64(z0))
}

// Intensity returns the brush weight of grid cell (x, z) for a brush of the given
// world-space radius centred at center. The kernel spans 2*radius world units.
func (f *Footprint) Intensity(x, z int, center mgl64.Vec3, radius float64) float64 {
	if radius <= 0 {
		return 0
	}
	kx := KernelCoord(grid.WorldCoord(x), center.X(), radius)
	kz := KernelCoord(grid.WorldCoord(z), center.Z(), radius)
	return f.Sample(kx, kz)
}

// KernelCoord maps a world coordinate into texel space relative to a brush centre.
func KernelCoord(world, center, radius float64) float64 {
	return (world-center+radius)/(2*radius)*Resolution - 0.5
}

func clampTexel(v float64) int {
	if v < 0 {
		return 0
	}
	if v > Resolution-1 {
		return Resolution - 1
	}
	return int(v)
}
