package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/avalanche-location-etl/internal/adapter/boundary"
	httpadapter "github.com/couchcryptid/avalanche-location-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/avalanche-location-etl/internal/adapter/kafka"
	"github.com/couchcryptid/avalanche-location-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/avalanche-location-etl/internal/config"
	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
	"github.com/couchcryptid/avalanche-location-etl/internal/observability"
	"github.com/couchcryptid/avalanche-location-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	region, err := boundary.Load(cfg.BoundaryPath, boundary.Options{
		Name:      cfg.BoundaryName,
		NameField: cfg.BoundaryNameField,
		Tolerance: cfg.BoundaryTolerance,
	})
	if err != nil {
		logger.Error("failed to load boundary", "path", cfg.BoundaryPath, "error", err)
		os.Exit(1)
	}
	logger.Info("boundary loaded",
		"name", region.Name(),
		"polygons", region.NumPolygons(),
		"tolerance", region.Tolerance(),
		"hemisphere", cfg.Hemisphere.String(),
	)
	engine := domain.NewEngine(region, cfg.Hemisphere)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateLimit, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.MapboxCacheSize,
			"timeout", cfg.MapboxTimeout,
			"rate_limit", cfg.MapboxRateLimit,
		)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(engine, geocoder, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	stats := p.Stats()
	logger.Info("shutdown complete",
		"input", stats.Input,
		"output", stats.Output,
		"dropped", stats.Dropped(),
	)
}
