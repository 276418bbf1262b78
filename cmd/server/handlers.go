package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"terrasculpt/internal/persistence/indexdb"
	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/editor"
	"terrasculpt/internal/sim/terrain/grid"
)

type app struct {
	session  *editor.Session
	treasury *economy.Treasury
	index    strokeIndex
	logger   *log.Logger
}

// maxHeightmapBytes bounds an uploaded heightmap; a 16-bit 1081² png is ~2.3MB raw.
const maxHeightmapBytes = 32 << 20

func (a *app) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(200)
	_, _ = rw.Write([]byte("ok"))
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	st, err := a.session.Snapshot(ctx)
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	spent, refunded := a.treasury.Totals()

	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP terrasculpt_tick Current editor tick.\n")
	fmt.Fprintf(rw, "# TYPE terrasculpt_tick gauge\n")
	fmt.Fprintf(rw, "terrasculpt_tick %d\n", st.Tick)

	fmt.Fprintf(rw, "# HELP terrasculpt_undo_depth Committed strokes that can be undone.\n")
	fmt.Fprintf(rw, "# TYPE terrasculpt_undo_depth gauge\n")
	fmt.Fprintf(rw, "terrasculpt_undo_depth %d\n", st.UndoDepth)

	fmt.Fprintf(rw, "# HELP terrasculpt_stroke_cost Pending cost of the active stroke.\n")
	fmt.Fprintf(rw, "# TYPE terrasculpt_stroke_cost gauge\n")
	fmt.Fprintf(rw, "terrasculpt_stroke_cost %d\n", st.StrokeCost)

	fmt.Fprintf(rw, "# HELP terrasculpt_treasury_total Lifetime treasury movements.\n")
	fmt.Fprintf(rw, "# TYPE terrasculpt_treasury_total counter\n")
	fmt.Fprintf(rw, "terrasculpt_treasury_total{kind=%q} %d\n", "spent", spent)
	fmt.Fprintf(rw, "terrasculpt_treasury_total{kind=%q} %d\n", "refunded", refunded)

	if a.index != nil {
		s := a.index.Stats()
		fmt.Fprintf(rw, "# HELP terrasculpt_index_queue_depth Stroke index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE terrasculpt_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "terrasculpt_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP terrasculpt_index_dropped_total Stroke records dropped by the index.\n")
		fmt.Fprintf(rw, "# TYPE terrasculpt_index_dropped_total counter\n")
		fmt.Fprintf(rw, "terrasculpt_index_dropped_total %d\n", s.DropStrokeTotal)
	}
}

func (a *app) handleStrokeSummary(rw http.ResponseWriter, r *http.Request) {
	if a.index == nil {
		http.Error(rw, "index disabled", http.StatusNotFound)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sum, err := a.index.Summary(ctx)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	resp := struct {
		indexdb.Summary
		NetSpend int64 `json:"net_spend"`
	}{sum, sum.NetSpend()}
	_ = json.NewEncoder(rw).Encode(resp)
}

func (a *app) handleAdminState(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	st, err := a.session.Snapshot(ctx)
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	resp := struct {
		Tick         uint64  `json:"tick"`
		Mode         string  `json:"mode"`
		BrushSize    float64 `json:"brush_size"`
		Strength     float64 `json:"strength"`
		StrokeActive bool    `json:"stroke_active"`
		StrokeCost   int64   `json:"stroke_cost"`
		UndoDepth    int     `json:"undo_depth"`
		Funds        int64   `json:"funds"`
		Free         bool    `json:"free"`
	}{
		Tick:         st.Tick,
		Mode:         st.Mode.String(),
		BrushSize:    st.BrushSize,
		Strength:     st.Strength,
		StrokeActive: st.StrokeActive,
		StrokeCost:   st.StrokeCost,
		UndoDepth:    st.UndoDepth,
		Funds:        st.Funds,
		Free:         st.Free,
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

// handleAdminTerrain replaces the terrain with an uploaded heightmap. The
// editor abandons any pending stroke cost and clears undo history.
func (a *app) handleAdminTerrain(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	samples, err := grid.DecodeHeightmap(http.MaxBytesReader(rw, r.Body, maxHeightmapBytes))
	rw.Header().Set("Content-Type", "application/json")
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(rw).Encode(map[string]any{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.session.LoadTerrain(ctx, samples); err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(rw).Encode(map[string]any{"error": err.Error()})
		return
	}
	a.logger.Printf("terrain: loaded heightmap from %s", r.RemoteAddr)
	_ = json.NewEncoder(rw).Encode(map[string]any{"tick": a.session.CurrentTick(), "cells": len(samples)})
}
