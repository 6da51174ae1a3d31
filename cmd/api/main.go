package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"respondr/internal/config"
	"respondr/internal/httpserver"
	"respondr/internal/logging"
	"respondr/internal/observability"
	"respondr/internal/service"
	"respondr/internal/storage"
	filestore "respondr/internal/storage/file"
	"respondr/internal/storage/memory"
	"respondr/internal/storage/pg"
	"respondr/internal/util"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	fallback, err := filestore.New(cfg.FallbackStorePath)
	if err != nil {
		slog.Error("api fallback store init failed", "err", err, "path", cfg.FallbackStorePath)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	store := storage.NewManager(pg.New(db), storage.ManagerOptions{
		Fallback:      fallback,
		NewEmergency:  func() storage.Backend { return memory.New() },
		ProbeInterval: time.Duration(cfg.StorageProbeInterval) * time.Second,
		OpAttempts:    cfg.StorageOpAttempts,
	})
	go store.Run(ctx)

	svc := &service.Dashboard{
		Store: store,
		IDGen: util.NewRecordID,
	}

	s := httpserver.New()
	// attached on the router so the metric label is the route template, not
	// the raw path
	s.Mux.Use(httpserver.Metrics(observability.APIRequests))
	api := &httpserver.API{Svc: svc}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		// the manager answers as long as any backend does
		return store.Ping(ctx)
	}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(s.Mux),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	db.Close()
}
