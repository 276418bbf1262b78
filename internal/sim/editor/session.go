package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"terrasculpt/internal/protocol"
	"terrasculpt/internal/sim/encoding"
	"terrasculpt/internal/sim/terrain/grid"
	"terrasculpt/internal/sim/terrain/heights"
)

type SessionConfig struct {
	TickRateHz int
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	Welcome   protocol.WelcomeMsg
	// Err is set when the session refused the client.
	Err *protocol.ErrorMsg
}

type InputEnvelope struct {
	SessionID string
	Input     protocol.InputMsg
}

type client struct {
	id  string
	out chan []byte
}

// Session drives a Controller from a fixed-rate tick loop and streams grid
// changes to a single connected client. All controller access happens on the
// loop goroutine.
type Session struct {
	cfg    SessionConfig
	ctl    *Controller
	logger *log.Logger

	client     *client
	dirty      []grid.Region
	fullResync bool
	lastStatus Status
	statusSent bool

	join   chan JoinRequest
	leave  chan string
	inbox  chan InputEnvelope
	loads  chan loadRequest
	status chan chan Status
	stop   chan struct{}

	stopOnce sync.Once
	nextID   atomic.Uint64
	tick     atomic.Uint64
}

type loadRequest struct {
	samples []uint16
	resp    chan error
}

func NewSession(cfg SessionConfig, ctl *Controller) (*Session, error) {
	if ctl == nil {
		return nil, fmt.Errorf("session: nil controller")
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 60
	}
	s := &Session{
		cfg:    cfg,
		ctl:    ctl,
		logger: log.New(io.Discard, "", 0),
		join:   make(chan JoinRequest, 8),
		leave:  make(chan string, 8),
		inbox:  make(chan InputEnvelope, 1024),
		loads:  make(chan loadRequest, 1),
		status: make(chan chan Status, 8),
		stop:   make(chan struct{}),
	}
	ctl.SetRefresher(s)
	return s, nil
}

func (s *Session) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *Session) Join() chan<- JoinRequest    { return s.join }
func (s *Session) Leave() chan<- string        { return s.leave }
func (s *Session) Inbox() chan<- InputEnvelope { return s.inbox }
func (s *Session) CurrentTick() uint64         { return s.tick.Load() }
func (s *Session) TickRateHz() int             { return s.cfg.TickRateHz }
func (s *Session) Stop()                       { s.stopOnce.Do(func() { close(s.stop) }) }
func (s *Session) Controller() *Controller     { return s.ctl }

// MarkDirty queues a rectangle for the next TILES message.
func (s *Session) MarkDirty(xmin, zmin, xmax, zmax int) {
	if s.fullResync {
		return
	}
	s.dirty = append(s.dirty, grid.Region{XMin: xmin, XMax: xmax, ZMin: zmin, ZMax: zmax})
}

// LoadTerrain replaces the grid at the next tick boundary.
func (s *Session) LoadTerrain(ctx context.Context, samples []uint16) error {
	req := loadRequest{samples: samples, resp: make(chan error, 1)}
	select {
	case s.loads <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot asks the loop for the controller status.
func (s *Session) Snapshot(ctx context.Context) (Status, error) {
	resp := make(chan Status, 1)
	select {
	case s.status <- resp:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingInputs []InputEnvelope
	var pendingLoads []loadRequest

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.stop:
			s.shutdown()
			return nil
		case req := <-s.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-s.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-s.inbox:
			pendingInputs = append(pendingInputs, env)
		case req := <-s.loads:
			pendingLoads = append(pendingLoads, req)
		case resp := <-s.status:
			resp <- s.ctl.Status()
		case <-ticker.C:
			for _, req := range pendingLoads {
				req.resp <- s.ctl.LoadTerrain(req.samples)
				s.fullResync = true
			}
			s.step(pendingJoins, pendingLeaves, pendingInputs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingInputs = pendingInputs[:0]
			pendingLoads = pendingLoads[:0]
		}
	}
}

// StepOnce advances the session by a single tick using the same ordering as Run.
// It is intended for tests.
func (s *Session) StepOnce(joins []JoinRequest, leaves []string, inputs []InputEnvelope) uint64 {
	s.step(joins, leaves, inputs)
	return s.tick.Load()
}

func (s *Session) shutdown() {
	if s.client != nil {
		s.client = nil
		s.ctl.OnSessionEnd()
	}
}

func (s *Session) step(joins []JoinRequest, leaves []string, inputs []InputEnvelope) {
	for _, id := range leaves {
		if s.client != nil && s.client.id == id {
			s.logger.Printf("session %s left", id)
			s.client = nil
			s.ctl.OnSessionEnd()
		}
	}
	for _, req := range joins {
		s.handleJoin(req)
	}
	for _, env := range inputs {
		if s.client == nil || env.SessionID != s.client.id {
			continue
		}
		if err := s.applyInput(env.Input); err != nil {
			e := protocol.NewError(protocol.ErrBadRequest, err.Error())
			s.send(e)
		}
	}

	s.ctl.Step()
	s.tick.Store(s.ctl.Tick())
	s.flush()
}

func (s *Session) handleJoin(req JoinRequest) {
	if s.client != nil {
		e := protocol.NewError(protocol.ErrSessionBusy, "another client is editing")
		req.Resp <- JoinResponse{Err: &e}
		return
	}
	id := fmt.Sprintf("S%06d", s.nextID.Add(1))
	s.client = &client{id: id, out: req.Out}
	s.ctl.OnSessionStart()
	s.fullResync = true
	s.dirty = s.dirty[:0]
	s.statusSent = false
	s.logger.Printf("session %s joined (%s)", id, req.Name)

	st := s.ctl.Status()
	req.Resp <- JoinResponse{
		SessionID: id,
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       id,
			TickRateHz:      s.cfg.TickRateHz,
			Grid: protocol.GridParams{
				Dimension:   grid.Dimension,
				CellSize:    grid.CellSize,
				HeightScale: grid.HeightScale,
				TileSpan:    grid.TileSpan,
			},
			Tool: protocol.ToolState{
				Mode:      st.Mode.String(),
				BrushSize: st.BrushSize,
				Strength:  st.Strength,
				Free:      st.Free,
			},
		},
	}
}

func parseButton(s string) (Button, error) {
	switch s {
	case protocol.ButtonPrimary:
		return Primary, nil
	case protocol.ButtonSecondary:
		return Secondary, nil
	}
	return 0, fmt.Errorf("unknown button %q", s)
}

func (s *Session) applyInput(in protocol.InputMsg) error {
	switch in.Event {
	case protocol.InputPress:
		b, err := parseButton(in.Button)
		if err != nil {
			return err
		}
		if in.Pos == nil {
			return fmt.Errorf("PRESS without pos")
		}
		s.ctl.Press(b, mgl64.Vec3(*in.Pos))
	case protocol.InputRelease:
		b, err := parseButton(in.Button)
		if err != nil {
			return err
		}
		s.ctl.Release(b)
	case protocol.InputCursor:
		if in.Pos == nil {
			s.ctl.ClearCursor()
		} else {
			s.ctl.Cursor(mgl64.Vec3(*in.Pos))
		}
	case protocol.InputEndStroke:
		s.ctl.EndStroke()
	case protocol.InputUndo:
		s.ctl.RequestUndo()
	case protocol.InputAbort:
		s.ctl.AbortStroke()
	case protocol.InputMode:
		m, ok := heights.ParseMode(in.Mode)
		if !ok {
			return fmt.Errorf("unknown mode %q", in.Mode)
		}
		s.ctl.SetMode(m)
	case protocol.InputBrushSize:
		s.ctl.AdjustBrushSize(in.Steps)
	case protocol.InputStrength:
		s.ctl.AdjustStrength(in.Steps)
	default:
		return fmt.Errorf("unknown input event %q", in.Event)
	}
	return nil
}

func (s *Session) flush() {
	if s.client == nil {
		s.dirty = s.dirty[:0]
		s.fullResync = false
		return
	}
	tick := s.tick.Load()

	regions := s.dirty
	if s.fullResync {
		regions = grid.Full().Tiles(grid.TileSpan)
	}
	if len(regions) > 0 {
		msg := protocol.TilesMsg{
			Type:            protocol.TypeTiles,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Full:            s.fullResync,
			Tiles:           make([]protocol.Tile, 0, len(regions)),
		}
		for _, r := range regions {
			enc, data := encoding.EncodeTile(s.ctl.Grid().Extract(r))
			msg.Tiles = append(msg.Tiles, protocol.Tile{
				X0:       r.XMin,
				Z0:       r.ZMin,
				X1:       r.XMax,
				Z1:       r.ZMax,
				Encoding: enc,
				Heights:  data,
			})
		}
		if s.send(msg) {
			s.fullResync = false
		} else {
			s.logger.Printf("session %s: tiles dropped at tick %d, scheduling resync", s.client.id, tick)
			s.fullResync = true
		}
	}
	s.dirty = s.dirty[:0]

	st := s.ctl.Status()
	cmp := st
	cmp.Tick = s.lastStatus.Tick
	if s.statusSent && cmp == s.lastStatus {
		return
	}
	ok := s.send(protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Mode:            st.Mode.String(),
		BrushSize:       st.BrushSize,
		Strength:        st.Strength,
		StrokeActive:    st.StrokeActive,
		StrokeCost:      st.StrokeCost,
		UndoDepth:       st.UndoDepth,
		Funds:           st.Funds,
		Free:            st.Free,
	})
	s.lastStatus, s.statusSent = st, ok
}

// send never blocks the loop; a full client queue drops the message.
func (s *Session) send(v any) bool {
	if s.client == nil {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("session: marshal: %v", err)
		return false
	}
	select {
	case s.client.out <- b:
		return true
	default:
		return false
	}
}
