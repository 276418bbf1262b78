package editor

import "terrasculpt/internal/sim/terrain/grid"

type RecordKind string

const (
	KindCommit  RecordKind = "COMMIT"
	KindUndo    RecordKind = "UNDO"
	KindAbort   RecordKind = "ABORT"
	KindAnomaly RecordKind = "ANOMALY"
)

// StrokeRecord describes one finished stroke-level event.
type StrokeRecord struct {
	Tick       uint64      `json:"tick"`
	Kind       RecordKind  `json:"kind"`
	Mode       string      `json:"mode,omitempty"`
	Region     grid.Region `json:"region"`
	Cells      int         `json:"cells"`
	Cost       int64       `json:"cost"`
	Free       bool        `json:"free,omitempty"`
	RingOffset int         `json:"ring_offset"`
	Evicted    int         `json:"evicted,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// StrokeLogger receives stroke records. Implemented in internal/persistence/*.
type StrokeLogger interface {
	WriteStroke(rec StrokeRecord) error
}

// Refresher is told which grid cells changed. Rectangles are inclusive and at
// most grid.TileSpan+1 cells wide.
type Refresher interface {
	MarkDirty(xmin, zmin, xmax, zmax int)
}

type multiStrokeLogger []StrokeLogger

// MultiStrokeLogger fans records out to every non-nil logger and returns the
// first error.
func MultiStrokeLogger(ls ...StrokeLogger) StrokeLogger {
	var out multiStrokeLogger
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multiStrokeLogger) WriteStroke(rec StrokeRecord) error {
	var first error
	for _, l := range m {
		if err := l.WriteStroke(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
