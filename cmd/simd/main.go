package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/neg-0/overwatch-sub002/internal/alloc"
	"github.com/neg-0/overwatch-sub002/internal/api"
	"github.com/neg-0/overwatch-sub002/internal/broadcast"
	"github.com/neg-0/overwatch-sub002/internal/config"
	"github.com/neg-0/overwatch-sub002/internal/events"
	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/internal/observability"
	"github.com/neg-0/overwatch-sub002/internal/orbit"
	"github.com/neg-0/overwatch-sub002/internal/scenario"
	"github.com/neg-0/overwatch-sub002/internal/store"
	"github.com/neg-0/overwatch-sub002/simclock"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logging.NewFromEnv().Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	apiCollector, err := observability.NewAPICollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise API metrics", logging.Err(err))
		os.Exit(1)
	}
	simCollector, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise simulation metrics", logging.Err(err))
		os.Exit(1)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error(ctx, "failed to open store", logging.String("path", cfg.DBPath), logging.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	gen := orbit.New(log, orbit.WithMinElevation(cfg.MinElevationDeg))
	loader := scenario.New(db, gen, log)

	if cfg.ScenarioFile != "" {
		summary, err := loader.LoadFile(ctx, cfg.ScenarioFile)
		if err != nil {
			log.Error(ctx, "failed to seed scenario", logging.String("file", cfg.ScenarioFile), logging.Err(err))
			os.Exit(1)
		}
		apiCollector.SetScenarioCounts(summary.Missions, summary.Assets, summary.Needs)
	}

	applicator := events.New(db, log)
	allocator := alloc.New(db, log, alloc.WithMetrics(simCollector))
	hub := broadcast.NewHub(log)
	defer hub.Close()

	// Each crossed day boundary regenerates that day's allocations in the
	// background.
	dayHook := func(ctx context.Context, scenarioID string, dayNumber int) {
		report, err := allocator.Allocate(ctx, scenarioID, dayNumber)
		if err != nil {
			log.Error(ctx, "day-boundary allocation failed",
				logging.String("scenario_id", scenarioID),
				logging.Int("day", dayNumber),
				logging.Err(err),
			)
			return
		}
		log.Info(ctx, "day-boundary allocation complete",
			logging.String("scenario_id", scenarioID),
			logging.Int("day", dayNumber),
			logging.Int("fulfilled", report.Summary.Fulfilled),
			logging.Int("degraded", report.Summary.Degraded),
			logging.Int("denied", report.Summary.Denied),
		)
	}

	clock := simclock.New(db, applicator, log,
		simclock.WithTickInterval(cfg.TickInterval),
		simclock.WithDefaultRatio(cfg.CompressionRatio),
		simclock.WithSink(hub),
		simclock.WithDayHook(dayHook),
		simclock.WithMetrics(simCollector),
	)

	mux := http.NewServeMux()
	api.NewServer(clock, allocator, loader, db, apiCollector, log).Register(mux)
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", apiCollector.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(ctx, "control surface listening", logging.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server exited", logging.Err(err))
			os.Exit(1)
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down")
	clock.Stop(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "HTTP shutdown failed", logging.Err(err))
	}
}
