// Package main is the entry point for the skyview API server.
//
// It loads configuration, wires the weather and image providers, the
// preference store and the per-client session registry into the core HTTP
// chassis, and serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"skyview/internal/api/handlers"
	"skyview/internal/config"
	"skyview/internal/core"
	"skyview/internal/db"
	"skyview/internal/external"
	"skyview/internal/imagery"
	"skyview/internal/metrics"
	"skyview/internal/preference"
	"skyview/internal/types"
	"skyview/internal/view"
	"skyview/internal/weather"
	"skyview/internal/widget"
)

const (
	metricsFlushInterval = time.Minute
	sessionPruneInterval = time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("skyview API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"preference_backend", cfg.Preferences.Backend,
	)
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		logger.Warn("provider credentials missing, lookups will fail", "keys", missing)
	}

	// Background workers (metrics flusher, session pruner) stop with this.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	srv, err := buildServer(bgCtx, cfg, logger)
	if err != nil {
		return err
	}

	return runHTTPServer(srv, cfg, logger, stopBackground)
}

// buildServer wires every component into a mounted core.Server. Background
// workers run until ctx is cancelled.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	collector, err := newMetrics(ctx, cfg, srv, logger)
	if err != nil {
		return nil, err
	}
	srv.Metrics = collector

	store, err := newPreferenceStore(ctx, cfg, srv, logger)
	if err != nil {
		return nil, err
	}

	registry := widget.NewRegistry(widget.Deps{
		Weather:     newWeatherClient(cfg),
		Images:      newImageClient(cfg),
		Preferences: store,
		Builder:     view.NewBuilder(cfg.Weather.IconBaseURL),
		Logger:      logger,
		Metrics:     collector,
	}, cfg.Session.IdleTTL)
	go registry.RunPruner(ctx, sessionPruneInterval)

	widgetHandler := handlers.NewWidgetHandler(
		registry,
		handlers.NewClientIdentity(cfg.Session.CookieName, cfg.Session.IdleTTL, cfg.Environment != "local"),
		srv.Validator,
		logger,
		handlers.WithAllowedOrigins(cfg.Server.CorsAllowedOrigins),
	)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, widgetHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// metricsSink is satisfied by both the CloudWatch collector and the no-op.
type metricsSink interface {
	core.MetricsCollector
	widget.FetchMetrics
}

// newMetrics returns a CloudWatch collector flushed in the background when
// METRICS_ENABLED is set, and a no-op otherwise. Whatever is still buffered at
// shutdown is flushed by a closer on srv.
func newMetrics(ctx context.Context, cfg *config.Config, srv *core.Server, logger *slog.Logger) (metricsSink, error) {
	if !cfg.Observability.MetricsEnabled {
		return metrics.Noop{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	collector := metrics.NewCollector(cw, cfg.Observability.MetricNamespace, logger)
	go collector.Run(ctx, metricsFlushInterval)
	srv.Closers = append(srv.Closers, func(ctx context.Context) error {
		collector.Flush(ctx)
		return nil
	})
	logger.Info("publishing metrics to CloudWatch", "namespace", cfg.Observability.MetricNamespace)
	return collector, nil
}

// newPreferenceStore builds the configured preference backend. The Postgres
// backend also registers a health probe and a pool closer on srv.
func newPreferenceStore(ctx context.Context, cfg *config.Config, srv *core.Server, logger *slog.Logger) (preference.Store, error) {
	switch cfg.Preferences.Backend {
	case config.PreferenceBackendMemory:
		logger.Warn("language preferences are kept in memory and lost on restart")
		return preference.NewMemoryStore(), nil

	case config.PreferenceBackendPostgres:
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		repo := db.NewPreferenceRepository(pool, cfg.Preferences.Key)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("preparing preference table: %w", err)
		}

		srv.HealthProbes = append(srv.HealthProbes, db.NewHealthProbe(pool))
		srv.Closers = append(srv.Closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		return repo, nil

	default:
		return preference.NewFileStore(cfg.Preferences.FilePath, cfg.Preferences.Key), nil
	}
}

func newUpstreamHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.Upstream.Timeout}
}

func newWeatherClient(cfg *config.Config) *weather.Client {
	base := external.NewBaseClient(newUpstreamHTTPClient(cfg), types.ProviderWeather, cfg.Upstream.UserAgent)
	return weather.NewClient(base, cfg.Weather.APIKey, cfg.Weather.BaseURL)
}

func newImageClient(cfg *config.Config) *imagery.Client {
	base := external.NewBaseClient(newUpstreamHTTPClient(cfg), types.ProviderImage, cfg.Upstream.UserAgent)
	return imagery.NewClient(base, cfg.Imagery.AccessKey, cfg.Imagery.BaseURL, imagery.Options{
		PageSize:    cfg.Imagery.PageSize,
		Orientation: cfg.Imagery.Orientation,
	})
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger, stopBackground context.CancelFunc) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	stopBackground()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
