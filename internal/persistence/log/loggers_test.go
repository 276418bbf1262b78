package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"terrasculpt/internal/sim/editor"
	"terrasculpt/internal/sim/terrain/grid"
)

func TestStrokeLogger_WriteListRead(t *testing.T) {
	dir := t.TempDir()
	l := NewStrokeLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	region := grid.Region{XMin: 500, XMax: 520, ZMin: 500, ZMax: 520}
	recs := []editor.StrokeRecord{
		{Tick: 3, Kind: editor.KindCommit, Mode: "LEVEL", Region: region, Cells: 441, Cost: 225792000},
		{Tick: 9, Kind: editor.KindUndo, Region: region, Cells: 441, Cost: 225792000},
	}
	for _, r := range recs {
		if err := l.WriteStroke(r); err != nil {
			t.Fatalf("WriteStroke: %v", err)
		}
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteStroke(editor.StrokeRecord{Tick: 12, Kind: editor.KindAnomaly, Reason: "undo: ring capacity exhausted"}); err != nil {
		t.Fatalf("WriteStroke: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListStrokeFiles(filepath.Join(dir, "audit"))
	if err != nil {
		t.Fatalf("ListStrokeFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want one per hour", files)
	}
	if filepath.Base(files[0]) != "strokes-2026-03-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", filepath.Base(files[0]))
	}

	var got []editor.StrokeRecord
	for _, f := range files {
		if err := ReadStrokes(f, func(r editor.StrokeRecord) error {
			got = append(got, r)
			return nil
		}); err != nil {
			t.Fatalf("ReadStrokes: %v", err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("records=%d want 3", len(got))
	}
	if got[0] != recs[0] || got[1] != recs[1] {
		t.Fatalf("round trip mismatch: %+v", got[:2])
	}
	if got[2].Kind != editor.KindAnomaly || got[2].Reason == "" {
		t.Fatalf("anomaly=%+v", got[2])
	}
}

func TestListStrokeFiles_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"strokes-2026-01-01-00.jsonl.zst", "events-2026-01-01-00.jsonl.zst", "strokes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := ListStrokeFiles(dir)
	if err != nil {
		t.Fatalf("ListStrokeFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
}
