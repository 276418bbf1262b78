package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"terrasculpt/internal/persistence/indexdb"
	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/editor"
	"terrasculpt/internal/sim/terrain/grid"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	tr := economy.NewTreasury(1_000_000)
	ctl, err := editor.New(editor.DefaultConfig(), grid.NewFlat(640), tr, nil)
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}
	sess, err := editor.NewSession(editor.SessionConfig{TickRateHz: 200}, ctl)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = sess.Run(ctx) }()

	return &app{
		session:  sess,
		treasury: tr,
		index:    idx,
		logger:   log.New(io.Discard, "", 0),
	}
}

func heightmapPNG(t *testing.T, y uint16) *bytes.Buffer {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, grid.Dimension, grid.Dimension))
	for i := 0; i < len(img.Pix); i += 2 {
		img.Pix[i], img.Pix[i+1] = uint8(y>>8), uint8(y)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return &buf
}

func TestAdminTerrain_LoadsHeightmap(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/terrain", heightmapPNG(t, 3000))
	req.RemoteAddr = "127.0.0.1:5555"
	rw := httptest.NewRecorder()
	a.handleAdminTerrain(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rw.Code, rw.Body.String())
	}
	var resp struct {
		Cells int `json:"cells"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Cells != grid.Cells {
		t.Fatalf("cells=%d", resp.Cells)
	}

	// The load lands at a tick boundary; the reply waits for it.
	g := a.session.Controller().Grid()
	if g.Backup[grid.Index(0, 0)] != 3000 || g.Backup[grid.Index(700, 900)] != 3000 {
		t.Fatalf("backup not replaced: %d", g.Backup[0])
	}
}

func TestAdminTerrain_RejectsBadImage(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/terrain", strings.NewReader("nope"))
	req.RemoteAddr = "127.0.0.1:5555"
	rw := httptest.NewRecorder()
	a.handleAdminTerrain(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rw.Code, rw.Body.String())
	}
}

func TestAdminEndpoints_LoopbackOnly(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/terrain", heightmapPNG(t, 1))
	req.RemoteAddr = "203.0.113.7:5555"
	rw := httptest.NewRecorder()
	a.handleAdminTerrain(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("terrain from remote: status=%d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/terrain", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rw = httptest.NewRecorder()
	a.handleAdminTerrain(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET terrain: status=%d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "[::1]:5555"
	rw = httptest.NewRecorder()
	a.handleAdminState(rw, req)
	if rw.Code != http.StatusOK || !strings.Contains(rw.Body.String(), `"mode":"SHIFT"`) {
		t.Fatalf("state: status=%d body=%s", rw.Code, rw.Body.String())
	}
}

func TestStrokeSummary_ReportsNetSpend(t *testing.T) {
	a := newTestApp(t)
	r := grid.Region{XMin: 0, ZMin: 0, XMax: 1, ZMax: 1}
	_ = a.index.WriteStroke(editor.StrokeRecord{Tick: 3, Kind: editor.KindCommit, Region: r, Cells: 4, Cost: 900})
	_ = a.index.WriteStroke(editor.StrokeRecord{Tick: 4, Kind: editor.KindUndo, Region: r, Cells: 4, Cost: 900})
	_ = a.index.WriteStroke(editor.StrokeRecord{Tick: 8, Kind: editor.KindCommit, Region: r, Cells: 4, Cost: 250})

	rw := httptest.NewRecorder()
	a.handleStrokeSummary(rw, httptest.NewRequest(http.MethodGet, "/v1/strokes/summary", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rw.Code, rw.Body.String())
	}
	var resp struct {
		Counts   map[string]int `json:"counts"`
		NetSpend int64          `json:"net_spend"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Counts["COMMIT"] != 2 || resp.Counts["UNDO"] != 1 || resp.NetSpend != 250 {
		t.Fatalf("summary=%+v", resp)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	a := newTestApp(t)
	rw := httptest.NewRecorder()
	a.handleMetrics(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rw.Body.String()
	for _, want := range []string{"terrasculpt_tick ", "terrasculpt_undo_depth 0", `terrasculpt_treasury_total{kind="spent"} 0`, "terrasculpt_index_dropped_total 0"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
