package heights

import (
	"github.com/go-gl/mathgl/mgl64"

	"terrasculpt/internal/sim/terrain/grid"
)

// Params are the mode constants that do not change during a session.
type Params struct {
	ShiftDelta       float64
	SoftenRadius     int
	SoftenWideRadius int
}

func DefaultParams() Params {
	return Params{ShiftDelta: 20, SoftenRadius: 3, SoftenWideRadius: 10}
}

// Stroke is the per-batch input of a Computer.
type Stroke struct {
	Mode Mode
	// Secondary flips Shift to lowering and widens Soften.
	Secondary bool
	// Start is the drag anchor (Level target, Slope start); End is the Slope end.
	Start mgl64.Vec3
	End   mgl64.Vec3
}

// Computer produces mode-specific target heights in world units.
type Computer struct {
	mode  Mode
	delta float64

	radius int
	final  []uint16

	start    mgl64.Vec3
	end      mgl64.Vec3
	axis     mgl64.Vec3
	invLenSq float64
}

// NewComputer prepares a computer for one brush batch. final is the smoothed
// grid Soften reads from; it must not be written while the computer is in use.
func NewComputer(p Params, s Stroke, final []uint16) *Computer {
	c := &Computer{
		mode:   s.Mode,
		delta:  p.ShiftDelta,
		radius: p.SoftenRadius,
		final:  final,
		start:  s.Start,
		end:    s.End,
	}
	switch s.Mode {
	case Shift:
		if s.Secondary {
			c.delta = -c.delta
		}
	case Soften:
		if s.Secondary {
			c.radius = p.SoftenWideRadius
		}
	case Slope:
		axis := s.End.Sub(s.Start)
		axis[1] = 0
		if sq := axis.Dot(axis); sq != 0 {
			c.invLenSq = 1 / sq
		}
		c.axis = axis
	}
	if c.radius < 1 {
		c.radius = 1
	}
	return c
}

// Target returns the unblended target height of cell (x, z) whose current
// height is current.
func (c *Computer) Target(x, z int, current float64) float64 {
	switch c.mode {
	case Shift:
		return current + c.delta
	case Level:
		return c.start.Y()
	case Soften:
		return c.soften(x, z, current)
	case Slope:
		p := mgl64.Vec3{grid.WorldCoord(x), 0, grid.WorldCoord(z)}
		rel := p.Sub(c.start)
		rel[1] = 0
		t := rel.Dot(c.axis) * c.invLenSq
		return Lerp(c.start.Y(), c.end.Y(), t)
	}
	return current
}

func (c *Computer) soften(x, z int, current float64) float64 {
	r := c.radius
	x0, x1 := max(x-r, 0), min(x+r, grid.MaxIndex)
	z0, z1 := max(z-r, 0), min(z+r, grid.MaxIndex)
	rr := float64(r * r)

	var sum, weight float64
	for k := z0; k <= z1; k++ {
		for l := x0; l <= x1; l++ {
			d := (l-x)*(l-x) + (k-z)*(k-z)
			w := 1 - float64(d)/rr
			if w <= 0 {
				continue
			}
			sum += grid.ToWorld(c.final[grid.Index(l, k)]) * w
			weight += w
		}
	}
	if weight == 0 {
		return current
	}
	return sum / weight
}

// Blend mixes the pre-edit height toward target by strength*intensity.
func Blend(current, target, strength, intensity float64) float64 {
	return Lerp(current, target, strength*intensity)
}

// Lerp interpolates a→b with t clamped to [0,1].
func Lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}
