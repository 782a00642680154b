// Command server is the entry point for the Postdesk API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postdesk/internal/config"
	"postdesk/internal/middleware"
	"postdesk/internal/observability"
	"postdesk/internal/server"

	"golang.org/x/sync/errgroup"
)

// @title Postdesk API
// @version 1.0
// @description Manage scheduled marketing posts per brand and platform.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api
// @schemes http https

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("Server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:    "postdesk-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		return err
	}

	srv.NewApp()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Listen()
	})

	g.Go(func() error {
		<-gctx.Done()
		middleware.Logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("Server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			middleware.Logger.Error("Tracer shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}
