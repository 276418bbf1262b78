package grid

import (
	"fmt"
	"math"
)

const (
	Dimension = 1081
	MaxIndex  = Dimension - 1
	Cells     = Dimension * Dimension

	// CellSize is the world-space spacing between neighbouring samples.
	CellSize = 16.0
	// HeightScale converts world height to sample units.
	HeightScale = 64.0
	MaxSample   = math.MaxUint16

	// TileSpan is the extent of one refresh tile; a tile covers TileSpan+1 cells per axis.
	TileSpan      = 128
	RefreshMargin = 2
)

func Index(x, z int) int { return z*Dimension + x }

// WorldCoord returns the world-space coordinate of grid column (or row) i.
func WorldCoord(i int) float64 {
	return (float64(i) - float64(MaxIndex)*0.5) * CellSize
}

// CellCoord maps a world coordinate onto the (fractional) grid axis.
func CellCoord(w float64) float64 {
	return w/CellSize + float64(MaxIndex)*0.5
}

func ToWorld(s uint16) float64 { return float64(s) / HeightScale }

// ToSample quantizes a world height, rounding half to even and clamping to the sample range.
func ToSample(h float64) uint16 {
	v := math.RoundToEven(h * HeightScale)
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= MaxSample {
		return MaxSample
	}
	return uint16(v)
}

// Heights holds the three parallel sample grids of one editing session.
//
// Raw is authoritative. Final is the smoothed read source for neighbourhood
// averaging and is only refreshed outside of strokes. Backup mirrors Raw except
// inside the region of an in-progress stroke, where it keeps pre-stroke values.
type Heights struct {
	Raw    []uint16
	Final  []uint16
	Backup []uint16
}

func New() *Heights {
	return &Heights{
		Raw:    make([]uint16, Cells),
		Final:  make([]uint16, Cells),
		Backup: make([]uint16, Cells),
	}
}

// NewFlat returns a grid with every sample set to s.
func NewFlat(s uint16) *Heights {
	h := New()
	for i := range h.Raw {
		h.Raw[i] = s
	}
	h.SyncAll()
	return h
}

// Load replaces the raw samples and resynchronizes the shadow grids.
func (h *Heights) Load(samples []uint16) error {
	if len(samples) != Cells {
		return fmt.Errorf("grid: got %d samples, want %d", len(samples), Cells)
	}
	copy(h.Raw, samples)
	h.SyncAll()
	return nil
}

func (h *Heights) Height(x, z int) float64 { return ToWorld(h.Raw[Index(x, z)]) }

// SyncAll copies Raw into Backup and Final over the whole grid.
func (h *Heights) SyncAll() {
	copy(h.Backup, h.Raw)
	copy(h.Final, h.Raw)
}

func (h *Heights) SyncBackup() { copy(h.Backup, h.Raw) }

// SyncBackupIn copies Raw into Backup inside r only.
func (h *Heights) SyncBackupIn(r Region) {
	if r.Empty() {
		return
	}
	for z := r.ZMin; z <= r.ZMax; z++ {
		lo, hi := Index(r.XMin, z), Index(r.XMax, z)+1
		copy(h.Backup[lo:hi], h.Raw[lo:hi])
	}
}

func (h *Heights) SyncFinal(r Region) {
	if r.Empty() {
		return
	}
	for z := r.ZMin; z <= r.ZMax; z++ {
		lo, hi := Index(r.XMin, z), Index(r.XMax, z)+1
		copy(h.Final[lo:hi], h.Raw[lo:hi])
	}
}

// RestoreRaw discards uncommitted edits in r by copying Backup over Raw.
func (h *Heights) RestoreRaw(r Region) {
	if r.Empty() {
		return
	}
	for z := r.ZMin; z <= r.ZMax; z++ {
		lo, hi := Index(r.XMin, z), Index(r.XMax, z)+1
		copy(h.Raw[lo:hi], h.Backup[lo:hi])
	}
}

// Extract returns the raw samples of r in row-major order.
func (h *Heights) Extract(r Region) []uint16 {
	if r.Empty() {
		return nil
	}
	out := make([]uint16, 0, r.Cells())
	for z := r.ZMin; z <= r.ZMax; z++ {
		out = append(out, h.Raw[Index(r.XMin, z):Index(r.XMax, z)+1]...)
	}
	return out
}
