package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/daniacca/affectdb/internal/affect/storage/sqlite"
	platformotel "github.com/daniacca/affectdb/internal/platform/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "affectdb-server: %v\n", err)
		os.Exit(2)
	}

	logger := NewLogger(cfg.LogLevel)
	logger.Infof("Server config: addr=%s log_level=%s db=%q strict=%t tick=%g",
		cfg.Addr, cfg.LogLevel, cfg.DBPath, cfg.Strict, cfg.TickInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := platformotel.Setup(ctx, "affectdb-server", cfg.OTel)
	if err != nil {
		logger.Fatalf("Failed to set up tracing: %v", err)
	}

	srv := NewServer(logger, cfg.Strict)
	srv.SetTickInterval(cfg.TickInterval)

	if cfg.DBPath != "" {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			logger.Fatalf("Failed to open snapshot store: path=%s error=%v", cfg.DBPath, err)
		}
		defer store.Close()
		srv.SetStore(store)
		logger.Infof("Snapshot store opened: path=%s", cfg.DBPath)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("HTTP shutdown failed: %v", err)
		}
	}()

	logger.Infof("affectdb-server listening on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Server error: %v", err)
	}

	if err := srv.Close(); err != nil {
		logger.Errorf("Failed to close server: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Errorf("Failed to flush traces: %v", err)
	}
	logger.Infof("affectdb-server stopped")
}
