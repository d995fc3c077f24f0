package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/vision-helper/internal/app/bootstrap"
	appconfig "github.com/wolfman30/vision-helper/internal/config"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vision-helper API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, rt, err := newServer(ctx, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
	if err != nil {
		logger.Error("failed to build assistant", "error", err)
		os.Exit(1)
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
			_ = rt.Close()
			os.Exit(1)
		}
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := rt.Close(); err != nil {
		logger.Warn("failed to release backends", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// newServer builds the assistant and its HTTP server. Generation calls can
// take minutes under rate limiting, so the write timeout covers the full
// retry schedule.
func newServer(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *logging.Logger) (*http.Server, *bootstrap.Runtime, error) {
	rt, err := bootstrap.BuildAssistant(ctx, cfg, reg, logger)
	if err != nil {
		return nil, nil, err
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           bootstrap.BuildRouter(rt, cfg, gatherer, logger),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}, rt, nil
}
