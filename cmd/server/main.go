package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	persistlog "terrasculpt/internal/persistence/log"
	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/editor"
	"terrasculpt/internal/sim/terrain/brush"
	"terrasculpt/internal/sim/terrain/grid"
	"terrasculpt/internal/sim/tuning"
	"terrasculpt/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite stroke index")
		logFile    = flag.String("log_file", "", "write logs to a rotating file instead of stdout")
		brushPath  = flag.String("brush", "", "brush image (overrides brush_path in tuning)")
		heightmap  = flag.String("heightmap", "", "initial heightmap image (png, bmp or tiff); flat terrain when empty")
	)
	flag.Parse()

	var out io.Writer = os.Stdout
	if strings.TrimSpace(*logFile) != "" {
		lj := &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    64, // MB
			MaxBackups: 5,
			Compress:   true,
		}
		defer lj.Close()
		out = lj
	}
	logger := log.New(out, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
		tune.Normalize()
	}
	cfg, err := tune.EditorConfig()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	h := grid.NewFlat(tune.InitialHeight)
	if p := strings.TrimSpace(*heightmap); p != "" {
		samples, err := readHeightmap(p)
		if err != nil {
			logger.Fatalf("heightmap: %v", err)
		}
		if err := h.Load(samples); err != nil {
			logger.Fatalf("heightmap: %v", err)
		}
		logger.Printf("terrain: loaded heightmap %s", p)
	}
	treasury := economy.NewTreasury(tune.Funds())

	ctl, err := editor.New(cfg, h, treasury, nil)
	if err != nil {
		logger.Fatalf("editor: %v", err)
	}
	ctl.SetLogger(logger)

	bp := strings.TrimSpace(*brushPath)
	if bp == "" {
		bp = strings.TrimSpace(tune.BrushPath)
	}
	if bp != "" {
		f, err := brush.Load(bp)
		if err != nil {
			logger.Fatalf("load brush: %v", err)
		}
		ctl.SetFootprint(f)
	}

	// Stroke audit: zstd JSONL is the source of truth; the sqlite index is a
	// read model and may drop records under load.
	audit := persistlog.NewStrokeLogger(*dataDir)
	defer audit.Close()
	idx, err := openStrokeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open stroke index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		ctl.SetStrokeLogger(editor.MultiStrokeLogger(audit, idx))
	} else {
		ctl.SetStrokeLogger(audit)
	}

	sess, err := editor.NewSession(editor.SessionConfig{TickRateHz: tune.TickRateHz}, ctl)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}
	sess.SetLogger(logger)

	a := &app{
		session:  sess,
		treasury: treasury,
		index:    idx,
		logger:   logger,
	}

	ctx, cancel := signalContext()
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("session stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/v1/strokes/summary", a.handleStrokeSummary)
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, logger).Handler())

	if envBool("TS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", a.handleAdminState)
		mux.HandleFunc("/admin/v1/terrain", a.handleAdminTerrain)
	} else {
		logger.Printf("admin endpoints disabled (TS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("TS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The session loop commits any in-flight stroke on exit; wait for it so
	// the audit log sees the final record before it is closed.
	cancel()
	<-stopped
}

func readHeightmap(path string) ([]uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return grid.DecodeHeightmap(f)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
