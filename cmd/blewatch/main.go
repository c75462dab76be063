package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blewatch/internal/classify"
	"blewatch/internal/config"
	"blewatch/internal/db"
	"blewatch/internal/httpapi"
	"blewatch/internal/metrics"
	"blewatch/internal/scansource"
	"blewatch/internal/scanworker"
	"blewatch/internal/session"
	"blewatch/internal/store"
)

func main() {
	cfg, err := config.Load(envOr("CONFIG_PATH", ""))
	if err != nil {
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	var recorder scanworker.Recorder
	if pool != nil {
		st := store.New(logger, pool)
		if err := st.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		recorder = st
	}

	agg := session.New()

	var advs <-chan classify.RawAdvertisement
	if cfg.Capture.Path != "" {
		src := scansource.New(logger, scansource.Options{
			Path:     cfg.Capture.Path,
			Interval: cfg.Capture.Interval.Std(),
			Loop:     cfg.Capture.Loop,
		}, m)
		advs = src.Advertisements()
		go src.Run(ctx)
	} else {
		logger.Warn().Msg("no capture path configured; serving an empty session")
	}

	worker := scanworker.New(logger, advs, agg, recorder, scanworker.Options{
		SessionID: cfg.SessionID,
	}, m)
	if advs != nil {
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, agg, pool, m, worker.SessionID())
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("blewatch listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
