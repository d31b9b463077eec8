// proctor: real-time interview proctoring service. Clients stream camera
// frames over a websocket and receive one analysis record per frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/triple4t/ai-interview/internal/config"
	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/internal/metrics"
	"github.com/triple4t/ai-interview/pkg/analysis"
	"github.com/triple4t/ai-interview/pkg/debug"
	"github.com/triple4t/ai-interview/pkg/hub"
	"github.com/triple4t/ai-interview/pkg/pipeline"
	"github.com/triple4t/ai-interview/pkg/session"
	"github.com/triple4t/ai-interview/pkg/vision/detection"
	"github.com/triple4t/ai-interview/pkg/vision/heuristics"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
	"github.com/triple4t/ai-interview/pkg/web"
)

var version = "0.1.0"

// sessionConfig holds the thresholds handed to new sessions. Running
// sessions keep the values they started with.
var sessionConfig atomic.Pointer[pipeline.Config]

func storeSessionConfig(cfg *config.Config) {
	pc := cfg.PipelineConfig()
	sessionConfig.Store(&pc)
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file (ignored if missing)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Trace every frame (very verbose)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("proctor", version)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var watcher *config.Watcher
	var cfg *config.Config
	var err error
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath, func(c *config.Config) {
			storeSessionConfig(c)
			debug.Log("session thresholds reloaded", "presence", c.Presence, "screen_switch", c.ScreenSwitch)
		})
		if err == nil {
			cfg = watcher.Current()
		}
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	level := cfg.Server.LogLevel
	if *debugFlag || *debugFrames {
		level = "debug"
	}
	log.Init(level)
	debug.Enabled = *debugFlag || *debugFrames
	debug.Frames = *debugFrames

	if err := run(cfg, watcher, *debugFlag); err != nil {
		log.Error("proctor exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, watcher *config.Watcher, verbose bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting proctor", "version", version, "port", cfg.Server.Port)

	prov, err := metrics.NewPrometheus("proctor", version)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		prov.Shutdown(sctx)
	}()
	m, err := metrics.New(prov.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// A model that fails to load is fatal before any session is accepted.
	models, err := detection.LoadModels(cfg.DetectorConfig())
	if err != nil {
		return err
	}
	defer models.Close()

	heur := heuristics.New(models.Cascade, models.Cascade, cfg.Detection.MaxFaces)
	voice := voicesignal.NewStore()
	monitors := hub.New("monitor")

	storeSessionConfig(cfg)
	factory := func(id string, logger *slog.Logger) *pipeline.Pipeline {
		return pipeline.New(models.Adapter(), heur, voice, *sessionConfig.Load(),
			pipeline.WithMetrics(m),
			pipeline.WithLogger(logger),
		)
	}
	sessions := session.NewManager(factory,
		session.WithMetrics(m),
		session.WithRequireArmed(cfg.Server.RequireArmed),
		session.WithRecordHook(func(id string, rec analysis.Record) {
			if monitors.ClientCount() == 0 {
				return
			}
			if err := monitors.Publish(id, rec); err != nil {
				log.Warn("monitor publish failed", "session_id", id, "error", err)
			}
		}),
	)

	srv := web.NewServer(sessions, monitors, voice, web.Options{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     prov.Handler(),
		Debug:       verbose,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitors.Run(ctx)
		return nil
	})
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Voice.FeedURL != "" {
		feed := voicesignal.NewFeed(cfg.Voice.FeedURL, voice)
		feed.RetryDelay = cfg.Voice.RetryDelay
		g.Go(func() error { return feed.Run(ctx) })
	}

	if watcher != nil {
		g.Go(func() error {
			err := watcher.Run(ctx)
			if err != nil {
				// hot reload is optional; keep serving
				log.Warn("config watcher stopped", "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("proctor stopped")
	return err
}
