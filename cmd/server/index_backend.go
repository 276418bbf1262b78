package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"terrasculpt/internal/persistence/indexdb"
	"terrasculpt/internal/sim/editor"
)

type strokeIndex interface {
	editor.StrokeLogger
	Summary(ctx context.Context) (indexdb.Summary, error)
	Stats() indexdb.Stats
	Close() error
}

func openStrokeIndex(dataDir string, disableDB bool) (strokeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index.db"))
	default:
		return nil, fmt.Errorf("unsupported TS_INDEX_BACKEND: %s", backend)
	}
}
