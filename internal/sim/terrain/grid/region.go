package grid

// Region is an inclusive rectangle of grid cells. XMin > XMax (or ZMin > ZMax)
// means no cell has been touched yet.
type Region struct {
	XMin int `json:"x_min"`
	XMax int `json:"x_max"`
	ZMin int `json:"z_min"`
	ZMax int `json:"z_max"`
}

func EmptyRegion() Region {
	return Region{XMin: MaxIndex, XMax: 0, ZMin: MaxIndex, ZMax: 0}
}

func Full() Region {
	return Region{XMin: 0, XMax: MaxIndex, ZMin: 0, ZMax: MaxIndex}
}

func (r Region) Empty() bool { return r.XMin > r.XMax || r.ZMin > r.ZMax }

// Include grows r to cover cell (x, z).
func (r *Region) Include(x, z int) {
	r.XMin = min(r.XMin, x)
	r.XMax = max(r.XMax, x)
	r.ZMin = min(r.ZMin, z)
	r.ZMax = max(r.ZMax, z)
}

func (r Region) Cells() int {
	return max(0, 1+r.XMax-r.XMin) * max(0, 1+r.ZMax-r.ZMin)
}

func (r Region) Contains(o Region) bool {
	if o.Empty() {
		return true
	}
	if r.Empty() {
		return false
	}
	return r.XMin <= o.XMin && o.XMax <= r.XMax && r.ZMin <= o.ZMin && o.ZMax <= r.ZMax
}

// Expand grows r by m cells on every side, clamped to the grid.
func (r Region) Expand(m int) Region {
	if r.Empty() {
		return r
	}
	return Region{
		XMin: max(0, r.XMin-m),
		XMax: min(MaxIndex, r.XMax+m),
		ZMin: max(0, r.ZMin-m),
		ZMax: min(MaxIndex, r.ZMax+m),
	}
}

// Clamp intersects r with the grid bounds.
func (r Region) Clamp() Region {
	return Region{
		XMin: max(0, r.XMin),
		XMax: min(MaxIndex, r.XMax),
		ZMin: max(0, r.ZMin),
		ZMax: min(MaxIndex, r.ZMax),
	}
}

// Tiles splits r into chunks of at most span+1 cells per axis, row by row.
func (r Region) Tiles(span int) []Region {
	if r.Empty() {
		return nil
	}
	if span < 0 {
		span = 0
	}
	var out []Region
	for z := r.ZMin; z <= r.ZMax; z += span + 1 {
		for x := r.XMin; x <= r.XMax; x += span + 1 {
			out = append(out, Region{
				XMin: x,
				XMax: min(x+span, r.XMax),
				ZMin: z,
				ZMax: min(z+span, r.ZMax),
			})
		}
	}
	return out
}
