package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	persistlog "terrasculpt/internal/persistence/log"
	"terrasculpt/internal/sim/editor"
)

func main() {
	var (
		auditDir = flag.String("audit", "./data/audit", "audit dir containing strokes-*.jsonl.zst")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (inclusive, optional)")
		verbose  = flag.Bool("v", false, "print every record")
	)
	flag.Parse()

	files, err := persistlog.ListStrokeFiles(*auditDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit files:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no stroke files found in", *auditDir)
		os.Exit(1)
	}

	var trace io.Writer
	if *verbose {
		trace = os.Stdout
	}
	rep, err := summarize(files, *fromTick, *toTick, trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read strokes:", err)
		os.Exit(1)
	}
	rep.print(os.Stdout)
}

type report struct {
	counts   map[editor.RecordKind]int
	cells    int64
	spent    int64
	refunded int64
	evicted  int
	first    uint64
	last     uint64
}

func (r report) netSpend() int64 { return r.spent - r.refunded }

func summarize(files []string, fromTick, toTick uint64, trace io.Writer) (report, error) {
	rep := report{counts: map[editor.RecordKind]int{}}
	seen := false
	for _, path := range files {
		err := persistlog.ReadStrokes(path, func(rec editor.StrokeRecord) error {
			if rec.Tick < fromTick || (toTick != 0 && rec.Tick > toTick) {
				return nil
			}
			if trace != nil {
				fmt.Fprintf(trace, "tick=%d kind=%s mode=%s region=[%d,%d]-[%d,%d] cells=%d cost=%d free=%t %s\n",
					rec.Tick, rec.Kind, rec.Mode, rec.Region.XMin, rec.Region.ZMin, rec.Region.XMax, rec.Region.ZMax,
					rec.Cells, rec.Cost, rec.Free, rec.Reason)
			}
			rep.counts[rec.Kind]++
			rep.evicted += rec.Evicted
			switch rec.Kind {
			case editor.KindCommit, editor.KindAnomaly:
				rep.cells += int64(rec.Cells)
				if !rec.Free {
					rep.spent += rec.Cost
				}
			case editor.KindUndo:
				if !rec.Free {
					rep.refunded += rec.Cost
				}
			}
			if !seen || rec.Tick < rep.first {
				rep.first = rec.Tick
			}
			if rec.Tick > rep.last {
				rep.last = rec.Tick
			}
			seen = true
			return nil
		})
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (r report) print(w io.Writer) {
	kinds := make([]string, 0, len(r.counts))
	for k := range r.counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(k), r.counts[editor.RecordKind(k)]))
	}
	fmt.Fprintf(w, "ticks %d..%d: %s\n", r.first, r.last, strings.Join(parts, " "))
	fmt.Fprintf(w, "cells=%d spent=%d refunded=%d net=%d evicted=%d\n", r.cells, r.spent, r.refunded, r.netSpend(), r.evicted)
}
