package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/speechrelay/external/audio"
	configloader "github.com/foxseedlab/speechrelay/external/config"
	metricsimpl "github.com/foxseedlab/speechrelay/external/metrics"
	repositoryimpl "github.com/foxseedlab/speechrelay/external/repository"
	transcriberimpl "github.com/foxseedlab/speechrelay/external/transcriber"
	transcriptimpl "github.com/foxseedlab/speechrelay/external/transcript"
	webhookimpl "github.com/foxseedlab/speechrelay/external/webhook"
	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/server"
	"github.com/foxseedlab/speechrelay/internal/session"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "framing", cfg.SocketFraming, "streaming_limit_ms", cfg.StreamingLimitMs)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching relay server")
	runRelay(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	metricsimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	transcriptimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func runRelay(cfg *config.Config, injector do.Injector) {
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		recorder, err := do.Invoke[*metricsimpl.PrometheusRecorder](injector)
		if err != nil {
			slog.Error("failed to resolve metrics recorder", "error", err)
			os.Exit(1)
		}
		metricsServer = metricsimpl.Serve(cfg.MetricsAddr, recorder)
	}

	srv := server.New(cfg.ListenAddr(), manager)
	if err := srv.Listen(); err != nil {
		slog.Error("relay server listen failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering accept loop")
		if err := srv.Serve(ctx); err != nil {
			slog.Error("relay server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down", "active_connections", manager.ActiveConnections())
	case <-done:
	}

	cancel()
	manager.Shutdown()
	srv.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}
	slog.Info("relay server stopped")
}
