// Package commands contains the CLI commands for the application.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betterportal/gateway/internal/app"
	"github.com/betterportal/gateway/internal/config"
)

const shutdownTimeout = 10 * time.Second

// RunServer starts the HTTP server with graceful shutdown support.
func RunServer(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on configuration
	gin.SetMode(cfg.GetGinMode())

	// Create dependency injection container
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container)

	// Mounting the portal wires the capability routes and the UI bundle
	// onto the HTTP server's router, so it must happen before Start.
	if _, err := container.Portal(); err != nil {
		return fmt.Errorf("failed to assemble portal: %w", err)
	}

	httpServer, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	logger.Info("starting server",
		"version", version,
		"host", cfg.ServerHost,
		"port", cfg.ServerPort,
		"metrics_enabled", cfg.MetricsEnabled,
	)

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start servers in goroutines
	serverErr := make(chan error, 2)
	go func() {
		if err := httpServer.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErrors []error

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return errors.Join(shutdownErrors...)
	}

	logger.Info("server stopped")
	return nil
}

func closeContainer(container *app.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := container.Shutdown(ctx); err != nil {
		container.Logger().Error("failed to shutdown container", "error", err)
	}
}
