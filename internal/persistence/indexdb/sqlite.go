package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"terrasculpt/internal/sim/editor"
)

// SQLiteIndex is a queryable secondary index of stroke records. The JSONL
// audit files remain the source of truth; writes are queued and dropped when
// the writer falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStroke atomic.Uint64
}

type reqKind int

const (
	reqStroke reqKind = iota + 1
	reqSync
)

type req struct {
	kind reqKind

	stroke editor.StrokeRecord
	done   chan struct{}
}

type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropStrokeTotal uint64 `json:"drop_stroke_total"`
}

// Summary aggregates the indexed strokes.
type Summary struct {
	Counts   map[editor.RecordKind]int `json:"counts"`
	Cells    int64                     `json:"cells"`
	Spent    int64                     `json:"spent"`
	Refunded int64                     `json:"refunded"`
	LastTick uint64                    `json:"last_tick"`
}

// NetSpend is what committed strokes cost after undo refunds.
func (s Summary) NetSpend() int64 { return s.Spent - s.Refunded }

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS strokes (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			mode TEXT NOT NULL,
			x_min INTEGER NOT NULL,
			z_min INTEGER NOT NULL,
			x_max INTEGER NOT NULL,
			z_max INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			cost INTEGER NOT NULL,
			free INTEGER NOT NULL,
			ring_offset INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			reason TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_strokes_kind ON strokes(kind);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteStroke(rec editor.StrokeRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqStroke, stroke: rec}:
	default:
		s.dropStroke.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropStrokeTotal: s.dropStroke.Load(),
	}
}

// Sync blocks until every record queued before the call is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Summary(ctx context.Context) (Summary, error) {
	out := Summary{Counts: map[editor.RecordKind]int{}}
	if err := s.Sync(ctx); err != nil {
		return out, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*), COALESCE(SUM(cells),0), COALESCE(SUM(CASE WHEN free=0 THEN cost ELSE 0 END),0), COALESCE(MAX(tick),0) FROM strokes GROUP BY kind`)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind  string
			n     int
			cells int64
			cost  int64
			last  int64
		)
		if err := rows.Scan(&kind, &n, &cells, &cost, &last); err != nil {
			return out, err
		}
		k := editor.RecordKind(kind)
		out.Counts[k] = n
		switch k {
		case editor.KindCommit, editor.KindAnomaly:
			out.Cells += cells
			out.Spent += cost
		case editor.KindUndo:
			out.Refunded += cost
		}
		if uint64(last) > out.LastTick {
			out.LastTick = uint64(last)
		}
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStroke, _ := s.db.Prepare(`INSERT OR REPLACE INTO strokes(tick,seq,kind,mode,x_min,z_min,x_max,z_max,cells,cost,free,ring_offset,evicted,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertStroke != nil {
			_ = insertStroke.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastTick uint64
		seq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// An open transaction holds the only connection, so idle periods commit
	// on a timer to keep readers from waiting on the next write.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		switch r.kind {
		case reqSync:
			commit()
			close(r.done)
			continue

		case reqStroke:
			begin()
			if tx == nil || insertStroke == nil {
				continue
			}
			rec := r.stroke
			if rec.Tick != lastTick {
				lastTick = rec.Tick
				seq = 0
			}
			n := seq
			seq++
			raw, _ := json.Marshal(rec)
			if _, err := tx.Stmt(insertStroke).Exec(
				int64(rec.Tick),
				n,
				string(rec.Kind),
				rec.Mode,
				rec.Region.XMin, rec.Region.ZMin, rec.Region.XMax, rec.Region.ZMax,
				rec.Cells,
				rec.Cost,
				boolInt(rec.Free),
				rec.RingOffset,
				rec.Evicted,
				rec.Reason,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
