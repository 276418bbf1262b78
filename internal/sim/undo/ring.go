package undo

import (
	"errors"
	"slices"

	"terrasculpt/internal/sim/terrain/grid"
)

const DefaultEvictionLimit = 10000

var (
	// ErrCapacityExhausted means the ring could not make room for a stroke
	// within the eviction limit. The stroke stays applied but cannot be undone.
	ErrCapacityExhausted = errors.New("undo: ring capacity exhausted")
	ErrEmptyRegion       = errors.New("undo: empty region")
)

// Entry is one committed stroke. Entries are values; the ring never edits one
// in place.
type Entry struct {
	Region    grid.Region
	Offset    int
	TotalCost int64
}

func (e Entry) Cells() int { return e.Region.Cells() }

// Ring stores pre-stroke samples of committed strokes in a fixed circular
// buffer. Entries are kept oldest first and evicted in that order.
type Ring struct {
	buf     []uint16
	free    int
	entries []Entry

	evictionLimit int
	evictions     int
}

// NewRing allocates a ring of capacity samples. capacity <= 0 means one full
// grid.
func NewRing(capacity, evictionLimit int) *Ring {
	if capacity <= 0 {
		capacity = grid.Cells
	}
	if evictionLimit <= 0 {
		evictionLimit = DefaultEvictionLimit
	}
	return &Ring{
		buf:           make([]uint16, capacity),
		evictionLimit: evictionLimit,
	}
}

func (r *Ring) Capacity() int { return len(r.buf) }
func (r *Ring) Len() int      { return len(r.entries) }

// Evictions counts entries discarded to make room since the last Clear.
func (r *Ring) Evictions() int { return r.evictions }

// FreeSpace is the number of samples that can be written at the free pointer
// without touching a live entry.
func (r *Ring) FreeSpace() int {
	c := len(r.buf)
	if len(r.entries) == 0 {
		return c - 1
	}
	return (c+r.entries[0].Offset-r.free)%c - 1
}

// Used is the total number of samples held by live entries.
func (r *Ring) Used() int {
	n := 0
	for _, e := range r.entries {
		n += e.Cells()
	}
	return n
}

func (r *Ring) Entries() []Entry {
	return slices.Clone(r.entries)
}

// Last returns the most recent entry.
func (r *Ring) Last() (Entry, bool) {
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

func (r *Ring) Clear() {
	r.entries = r.entries[:0]
	r.free = 0
	r.evictions = 0
}

// Commit snapshots h.Backup over region into the ring, then advances
// h.Backup to h.Raw inside region. Oldest entries are evicted until the
// region fits. It returns the new entry and how many entries were evicted.
func (r *Ring) Commit(region grid.Region, cost int64, h *grid.Heights) (Entry, int, error) {
	if region.Empty() {
		return Entry{}, 0, ErrEmptyRegion
	}
	need := region.Cells()
	evicted := 0
	for r.FreeSpace() < need {
		if evicted >= r.evictionLimit || len(r.entries) == 0 {
			return Entry{}, evicted, ErrCapacityExhausted
		}
		r.entries = slices.Delete(r.entries, 0, 1)
		evicted++
		r.evictions++
	}

	c := len(r.buf)
	e := Entry{Region: region, Offset: r.free, TotalCost: cost}
	off := r.free
	for z := region.ZMin; z <= region.ZMax; z++ {
		for x := region.XMin; x <= region.XMax; x++ {
			i := grid.Index(x, z)
			r.buf[off] = h.Backup[i]
			h.Backup[i] = h.Raw[i]
			off = (off + 1) % c
		}
	}
	r.free = off
	r.entries = append(r.entries, e)
	return e, evicted, nil
}

// Pop removes the most recent entry and restores Raw and Backup in its region
// from the ring.
func (r *Ring) Pop(h *grid.Heights) (Entry, bool) {
	e, ok := r.Last()
	if !ok {
		return Entry{}, false
	}
	c := len(r.buf)
	off := e.Offset
	for z := e.Region.ZMin; z <= e.Region.ZMax; z++ {
		for x := e.Region.XMin; x <= e.Region.XMax; x++ {
			i := grid.Index(x, z)
			h.Raw[i] = r.buf[off]
			h.Backup[i] = r.buf[off]
			off = (off + 1) % c
		}
	}
	r.free = e.Offset
	r.entries = r.entries[:len(r.entries)-1]
	return e, true
}
