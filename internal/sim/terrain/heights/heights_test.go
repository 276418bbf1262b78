package heights

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"terrasculpt/internal/sim/terrain/grid"
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, ok := ParseMode(m.String())
		if !ok || got != m {
			t.Fatalf("ParseMode(%q)=%v,%v", m.String(), got, ok)
		}
	}
	if got, ok := ParseMode(" level "); !ok || got != Level {
		t.Fatalf("expected case-insensitive parse, got %v,%v", got, ok)
	}
	if _, ok := ParseMode("SMEAR"); ok {
		t.Fatalf("unknown mode accepted")
	}
	if Mode(9).String() != "UNKNOWN" {
		t.Fatalf("out-of-range mode should stringify as UNKNOWN")
	}
}

func TestShift_SignFollowsSecondary(t *testing.T) {
	up := NewComputer(DefaultParams(), Stroke{Mode: Shift}, nil)
	if got := up.Target(1, 1, 100); got != 120 {
		t.Fatalf("raise target=%v want 120", got)
	}
	down := NewComputer(DefaultParams(), Stroke{Mode: Shift, Secondary: true}, nil)
	if got := down.Target(1, 1, 100); got != 80 {
		t.Fatalf("lower target=%v want 80", got)
	}
}

func TestLevel_UsesAnchorHeight(t *testing.T) {
	c := NewComputer(DefaultParams(), Stroke{Mode: Level, Start: mgl64.Vec3{5, 32, -7}}, nil)
	for _, cur := range []float64{0, 16, 900} {
		if got := c.Target(10, 10, cur); got != 32 {
			t.Fatalf("level target=%v want 32", got)
		}
	}
}

func TestSoften_WeightedAverageOfFinal(t *testing.T) {
	h := grid.NewFlat(640) // 10 world units
	h.Final[grid.Index(100, 100)] = 64 * 100
	h.Raw[grid.Index(100, 100)] = 0 // raw must be ignored

	c := NewComputer(DefaultParams(), Stroke{Mode: Soften}, h.Final)
	got := c.Target(100, 100, 0)

	// radius 3: weights 1 - d²/9 over cells with d² < 9.
	var wsum, vsum float64
	for dz := -3; dz <= 3; dz++ {
		for dx := -3; dx <= 3; dx++ {
			w := 1 - float64(dx*dx+dz*dz)/9
			if w <= 0 {
				continue
			}
			v := 10.0
			if dx == 0 && dz == 0 {
				v = 100
			}
			vsum += v * w
			wsum += w
		}
	}
	if want := vsum / wsum; math.Abs(got-want) > 1e-9 {
		t.Fatalf("soften target=%v want %v", got, want)
	}

	wide := NewComputer(DefaultParams(), Stroke{Mode: Soften, Secondary: true}, h.Final)
	if wide.Target(100, 100, 0) >= got {
		t.Fatalf("wide soften should dilute the peak more than the narrow one")
	}
}

func TestSoften_ClipsAtGridEdge(t *testing.T) {
	h := grid.NewFlat(1280)
	c := NewComputer(DefaultParams(), Stroke{Mode: Soften, Secondary: true}, h.Final)
	if got := c.Target(0, grid.MaxIndex, 0); math.Abs(got-20) > 1e-9 {
		t.Fatalf("flat soften at corner=%v want 20", got)
	}
}

func TestSlope_ProjectsOntoDragAxis(t *testing.T) {
	start := mgl64.Vec3{grid.WorldCoord(100), 10, grid.WorldCoord(200)}
	end := mgl64.Vec3{grid.WorldCoord(200), 50, grid.WorldCoord(200)}
	c := NewComputer(DefaultParams(), Stroke{Mode: Slope, Start: start, End: end}, nil)

	if got := c.Target(150, 250, 0); math.Abs(got-30) > 1e-9 {
		t.Fatalf("midpoint target=%v want 30", got)
	}
	if got := c.Target(100, 0, 0); got != 10 {
		t.Fatalf("start target=%v want 10", got)
	}
	if got := c.Target(400, 200, 0); got != 50 {
		t.Fatalf("beyond end should clamp to end height, got %v", got)
	}
	if got := c.Target(10, 200, 0); got != 10 {
		t.Fatalf("before start should clamp to start height, got %v", got)
	}
}

func TestSlope_ZeroLengthFallsBackToStart(t *testing.T) {
	p := mgl64.Vec3{grid.WorldCoord(10), 42, grid.WorldCoord(10)}
	c := NewComputer(DefaultParams(), Stroke{Mode: Slope, Start: p, End: mgl64.Vec3{p.X(), 99, p.Z()}}, nil)
	if got := c.Target(500, 500, 0); got != 42 {
		t.Fatalf("zero-length slope target=%v want 42", got)
	}
}

func TestBlend_StrengthAndIntensity(t *testing.T) {
	if got := Blend(10, 30, 1, 1); got != 30 {
		t.Fatalf("full blend=%v", got)
	}
	if got := Blend(10, 30, 0.5, 0.5); got != 15 {
		t.Fatalf("quarter blend=%v want 15", got)
	}
	if got := Blend(10, 30, 1, 0); got != 10 {
		t.Fatalf("zero intensity must keep current, got %v", got)
	}
	if got := Lerp(0, 10, 3); got != 10 {
		t.Fatalf("Lerp must clamp t, got %v", got)
	}
}
