package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pumpwatch-backend/internal/api"
	"pumpwatch-backend/internal/bus"
	"pumpwatch-backend/internal/config"
	"pumpwatch-backend/internal/history"
	"pumpwatch-backend/internal/ingest"
	"pumpwatch-backend/internal/monitor"
	"pumpwatch-backend/internal/realtime"
	"pumpwatch-backend/internal/storage"
	"pumpwatch-backend/internal/tagcache"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			logger.Error("failed to load config", slog.String("path", path), slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg = config.FromEnv(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	repo := storage.NewRepository(store)

	cache := tagcache.New(time.Duration(cfg.CacheTTLHours) * time.Hour)

	// The broker connection retries in the background, so an unreachable
	// feed never keeps the query surface from serving.
	conn, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		logger.Warn("nats unavailable, realtime features disabled", slog.String("error", err.Error()))
		conn = nil
	} else {
		defer conn.Close()
		pump := &ingest.Pump{
			Bus:         conn,
			Subject:     cfg.FeedSubject,
			Cache:       cache,
			Sink:        &realtime.NATSBroadcaster{Bus: conn, Subject: cfg.BroadcastSubject},
			Logger:      logger,
			PushTimeout: 2 * time.Second,
		}
		go func() {
			if err := pump.Run(ctx); err != nil {
				logger.Error("ingestion pump failed", slog.String("error", err.Error()))
			}
		}()
	}

	handler := &api.Handler{
		Cache:            cache,
		Monitor:          &monitor.Service{Source: repo},
		History:          &history.Service{Source: repo},
		Tags:             repo,
		Logger:           logger,
		Timeout:          time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		Bus:              conn,
		BroadcastSubject: cfg.BroadcastSubject,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays zero so SSE connections can outlive it.
		IdleTimeout: 30 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("monitoring backend listening", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("error", err.Error()))
	}
}
