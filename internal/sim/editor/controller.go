package editor

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/terrain/brush"
	"terrasculpt/internal/sim/terrain/grid"
	"terrasculpt/internal/sim/terrain/heights"
	"terrasculpt/internal/sim/undo"
)

type Button int

const (
	Primary Button = iota
	Secondary
)

func (b Button) String() string {
	switch b {
	case Primary:
		return "PRIMARY"
	case Secondary:
		return "SECONDARY"
	}
	return "UNKNOWN"
}

// Status is a read-only view of the controller for clients.
type Status struct {
	Tick         uint64
	Mode         heights.Mode
	BrushSize    float64
	Strength     float64
	StrokeActive bool
	StrokeCost   int64
	UndoDepth    int
	Funds        int64
	Free         bool
}

// Controller owns one editing session's grid, undo ring and stroke ledger.
// It is not safe for concurrent use; a single goroutine feeds it input and
// calls Step once per tick.
type Controller struct {
	cfg Config

	h         *grid.Heights
	ring      *undo.Ring
	ledger    *economy.Ledger
	econ      economy.Economy
	refresh   Refresher
	footprint *brush.Footprint

	logger  *log.Logger
	strokes StrokeLogger

	mode     heights.Mode
	settings [heights.ModeCount]Settings

	primary     bool
	secondary   bool
	cursor      mgl64.Vec3
	cursorValid bool
	start       mgl64.Vec3
	end         mgl64.Vec3

	undoPending  bool
	endPending   bool
	abortPending bool

	strokeActive bool
	strokeMode   heights.Mode
	region       grid.Region

	tick uint64
}

type nopRefresher struct{}

func (nopRefresher) MarkDirty(int, int, int, int) {}

func New(cfg Config, h *grid.Heights, econ economy.Economy, refresh Refresher) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("editor config: %w", err)
	}
	if h == nil {
		return nil, errors.New("editor: nil grid")
	}
	if econ == nil {
		return nil, errors.New("editor: nil economy")
	}
	if refresh == nil {
		refresh = nopRefresher{}
	}
	c := &Controller{
		cfg:       cfg,
		h:         h,
		ring:      undo.NewRing(cfg.RingCapacity, cfg.EvictionLimit),
		ledger:    economy.NewLedger(cfg.CostMultiplier),
		econ:      econ,
		refresh:   refresh,
		footprint: brush.Falloff(),
		logger:    log.New(io.Discard, "", 0),
		mode:      cfg.InitialMode,
		settings:  cfg.Modes,
		region:    grid.EmptyRegion(),
	}
	h.SyncAll()
	return c, nil
}

func (c *Controller) SetFootprint(f *brush.Footprint) {
	if f != nil {
		c.footprint = f
	}
}

func (c *Controller) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

func (c *Controller) SetStrokeLogger(l StrokeLogger) { c.strokes = l }

func (c *Controller) SetRefresher(r Refresher) {
	if r == nil {
		r = nopRefresher{}
	}
	c.refresh = r
}

func (c *Controller) Grid() *grid.Heights { return c.h }
func (c *Controller) Mode() heights.Mode  { return c.mode }
func (c *Controller) Settings() Settings  { return c.settings[c.mode] }
func (c *Controller) StrokeActive() bool  { return c.strokeActive }
func (c *Controller) UndoDepth() int      { return c.ring.Len() }
func (c *Controller) Tick() uint64        { return c.tick }

// Region returns the bounds of the active stroke; it is empty when idle.
func (c *Controller) Region() grid.Region { return c.region }

// Free reports whether edits currently bypass the economy.
func (c *Controller) Free() bool {
	return c.cfg.FreeMode || c.econ.CurrentFunds() == economy.Unlimited
}

func (c *Controller) Status() Status {
	s := c.settings[c.mode]
	return Status{
		Tick:         c.tick,
		Mode:         c.mode,
		BrushSize:    s.BrushSize,
		Strength:     s.Strength,
		StrokeActive: c.strokeActive,
		StrokeCost:   c.ledger.Total(),
		UndoDepth:    c.ring.Len(),
		Funds:        c.econ.CurrentFunds(),
		Free:         c.Free(),
	}
}

// idle is true when no button is held and no undo is queued.
func (c *Controller) idle() bool {
	return !c.primary && !c.secondary && !c.undoPending
}

// Press handles a button going down at world point p.
func (c *Controller) Press(b Button, p mgl64.Vec3) {
	c.cursor, c.cursorValid = p, true
	switch b {
	case Primary:
		c.primary = true
		c.end = p
	case Secondary:
		switch c.mode {
		case heights.Shift, heights.Soften:
			c.secondary = true
		case heights.Level, heights.Slope:
			c.start = p
		}
	}
}

// Release ends the stroke once no button is held anymore.
func (c *Controller) Release(b Button) {
	switch b {
	case Primary:
		c.primary = false
		if !c.secondary {
			c.endPending = true
		}
	case Secondary:
		c.secondary = false
		if !c.primary {
			c.endPending = true
		}
	}
}

func (c *Controller) Cursor(p mgl64.Vec3) { c.cursor, c.cursorValid = p, true }
func (c *Controller) ClearCursor()        { c.cursorValid = false }

// EndStroke releases every button and ends the stroke on the next step.
func (c *Controller) EndStroke() {
	c.primary, c.secondary = false, false
	c.endPending = true
}

// RequestUndo queues an undo of the latest committed stroke. It is refused
// while a button is held, an undo is already queued or there is no history.
func (c *Controller) RequestUndo() bool {
	if !c.idle() || c.ring.Len() == 0 {
		return false
	}
	c.undoPending = true
	return true
}

// AbortStroke discards the active stroke on the next step. Held buttons are
// released so the brush does not immediately start a new stroke.
func (c *Controller) AbortStroke() {
	c.primary, c.secondary = false, false
	c.endPending = false
	c.abortPending = true
}

func (c *Controller) SetMode(m heights.Mode) bool {
	if !m.Valid() || !c.idle() {
		return false
	}
	c.mode = m
	return true
}

// AdjustBrushSize moves the current mode's brush size by steps increments.
func (c *Controller) AdjustBrushSize(steps int) bool {
	if steps == 0 || !c.idle() {
		return false
	}
	s := &c.settings[c.mode]
	s.BrushSize = c.cfg.BrushSize.Clamp(s.BrushSize + float64(steps)*c.cfg.BrushSize.Step)
	return true
}

func (c *Controller) AdjustStrength(steps int) bool {
	if steps == 0 || !c.idle() {
		return false
	}
	s := &c.settings[c.mode]
	s.Strength = c.cfg.Strength.Clamp(s.Strength + float64(steps)*c.cfg.Strength.Step)
	return true
}

// Step runs one simulation tick. At most one of undo, abort, stroke end or a
// brush batch happens per call, in that priority.
func (c *Controller) Step() {
	c.tick++
	switch {
	case c.undoPending && !c.strokeActive:
		c.undoPending = false
		c.applyUndo()
	case c.abortPending:
		c.abortPending = false
		c.abortStroke()
	case c.endPending:
		c.endPending = false
		c.endStroke()
	case c.cursorValid && c.primary != c.secondary:
		c.applyBrush()
	}
}

func (c *Controller) beginStroke() {
	c.ledger.Begin(c.econ.CurrentFunds(), c.cfg.FreeMode)
	c.strokeActive = true
	c.strokeMode = c.mode
	c.region = grid.EmptyRegion()
}

func (c *Controller) resetStroke() {
	c.strokeActive = false
	c.region = grid.EmptyRegion()
}

// brushRect is the rectangle of cells a brush of radius r at p can touch.
func brushRect(p mgl64.Vec3, r float64) grid.Region {
	half := float64(grid.MaxIndex) * 0.5
	return grid.Region{
		XMin: int((p.X()-r)/grid.CellSize + half),
		XMax: int((p.X()+r)/grid.CellSize+half) + 1,
		ZMin: int((p.Z()-r)/grid.CellSize + half),
		ZMax: int((p.Z()+r)/grid.CellSize+half) + 1,
	}.Clamp()
}

func (c *Controller) applyBrush() {
	if !c.strokeActive {
		c.beginStroke()
	}
	s := c.settings[c.mode]
	p := c.cursor
	r := s.BrushSize * 0.5
	rect := brushRect(p, r)
	if rect.Empty() {
		return
	}

	comp := heights.NewComputer(c.cfg.Heights, heights.Stroke{
		Mode:      c.mode,
		Secondary: c.secondary,
		Start:     c.start,
		End:       c.end,
	}, c.h.Final)

	for z := rect.ZMin; z <= rect.ZMax; z++ {
		for x := rect.XMin; x <= rect.XMax; x++ {
			i := grid.Index(x, z)
			old := c.h.Raw[i]
			cur := grid.ToWorld(old)
			target := comp.Target(x, z, cur)
			next := grid.ToSample(heights.Blend(cur, target, s.Strength, c.footprint.Intensity(x, z, p, r)))
			if !c.ledger.Propose(old, next) {
				continue
			}
			c.h.Raw[i] = next
			c.region.Include(x, z)
		}
	}
	c.markDirty(rect)
}

func (c *Controller) endStroke() {
	if !c.strokeActive {
		return
	}
	region := c.region
	mode := c.strokeMode
	c.resetStroke()
	if region.Empty() {
		c.ledger.Discard()
		return
	}

	free := c.ledger.Free()
	cost := c.ledger.Settle(c.econ)
	e, evicted, err := c.ring.Commit(region, cost, c.h)
	c.h.SyncFinal(region.Expand(grid.RefreshMargin))
	if err != nil {
		// The edit stays on the grid without undo protection.
		c.h.SyncBackupIn(region)
		c.logger.Printf("editor: tick %d: commit %d cells: %v (evicted %d)", c.tick, region.Cells(), err, evicted)
		c.record(StrokeRecord{
			Kind:    KindAnomaly,
			Mode:    mode.String(),
			Region:  region,
			Cells:   region.Cells(),
			Cost:    cost,
			Free:    free,
			Evicted: evicted,
			Reason:  err.Error(),
		})
		return
	}
	if evicted > 0 {
		c.logger.Printf("editor: tick %d: evicted %d undo entries", c.tick, evicted)
	}
	c.record(StrokeRecord{
		Kind:       KindCommit,
		Mode:       mode.String(),
		Region:     region,
		Cells:      e.Cells(),
		Cost:       cost,
		Free:       free,
		RingOffset: e.Offset,
		Evicted:    evicted,
	})
}

func (c *Controller) abortStroke() {
	if !c.strokeActive {
		return
	}
	region := c.region
	pending := c.ledger.Total()
	mode := c.strokeMode
	c.ledger.Discard()
	c.resetStroke()
	if region.Empty() {
		return
	}
	c.h.RestoreRaw(region)
	c.markDirty(region)
	c.record(StrokeRecord{
		Kind:   KindAbort,
		Mode:   mode.String(),
		Region: region,
		Cells:  region.Cells(),
		Cost:   pending,
		Reason: "discarded",
	})
}

func (c *Controller) applyUndo() {
	e, ok := c.ring.Pop(c.h)
	if !ok {
		return
	}
	c.h.SyncBackup()
	dirty := e.Region.Expand(grid.RefreshMargin)
	c.h.SyncFinal(dirty)
	c.markDirty(dirty)
	free := c.Free()
	economy.Refund(c.econ, e.TotalCost, free)
	c.record(StrokeRecord{
		Kind:       KindUndo,
		Region:     e.Region,
		Cells:      e.Cells(),
		Cost:       e.TotalCost,
		Free:       free,
		RingOffset: e.Offset,
	})
}

// finishStroke commits any stroke still in flight so it is charged.
func (c *Controller) finishStroke() {
	c.abortPending = false
	c.endPending = false
	c.endStroke()
}

func (c *Controller) resetInput() {
	c.primary, c.secondary = false, false
	c.cursorValid = false
	c.undoPending, c.endPending, c.abortPending = false, false, false
}

// OnSessionStart prepares a fresh editing session over the current grid.
func (c *Controller) OnSessionStart() {
	c.finishStroke()
	c.resetInput()
	c.ring.Clear()
	c.h.SyncAll()
}

func (c *Controller) OnSessionEnd() {
	c.finishStroke()
	c.resetInput()
	c.ring.Clear()
	c.h.SyncAll()
}

// LoadTerrain replaces the grid. Pending stroke cost is dropped and the undo
// history is cleared.
func (c *Controller) LoadTerrain(samples []uint16) error {
	if err := c.h.Load(samples); err != nil {
		return err
	}
	c.ledger.Discard()
	c.resetStroke()
	c.resetInput()
	c.ring.Clear()
	c.markDirty(grid.Full())
	return nil
}

func (c *Controller) markDirty(r grid.Region) {
	for _, t := range r.Tiles(grid.TileSpan) {
		c.refresh.MarkDirty(t.XMin, t.ZMin, t.XMax, t.ZMax)
	}
}

func (c *Controller) record(rec StrokeRecord) {
	if c.strokes == nil {
		return
	}
	rec.Tick = c.tick
	if err := c.strokes.WriteStroke(rec); err != nil {
		c.logger.Printf("editor: stroke log: %v", err)
	}
}
