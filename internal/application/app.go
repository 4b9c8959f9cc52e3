// Package application wires configuration into a ready-to-run cleaning
// pipeline: the zip lookup client, the file sink and the optional
// PostgreSQL sink. Both binaries build their pipeline through it.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/fuelclean/internal/config"
	"github.com/JonMunkholm/fuelclean/internal/csvio"
	"github.com/JonMunkholm/fuelclean/internal/pipeline"
	"github.com/JonMunkholm/fuelclean/internal/storage"
	"github.com/JonMunkholm/fuelclean/internal/ziplookup"
)

// App holds the wired pipeline and the resources it owns.
type App struct {
	Options  pipeline.Options
	Pipeline *pipeline.Pipeline

	pool *pgxpool.Pool
}

// New builds the pipeline for cfg. perRun writes each run's files into
// OUTPUT_DIR/<run id>, which the server needs and the one-shot cleaner does not.
func New(ctx context.Context, cfg *config.Config, perRun bool) (*App, error) {
	opts, err := cfg.PipelineOptions()
	if err != nil {
		return nil, fmt.Errorf("pipeline options: %w", err)
	}

	if cfg.Lookup.APIKey == "" {
		slog.Warn("ZIP_API_KEY is not set; the lookup service may reject requests")
	}
	client := ziplookup.NewClient(ziplookup.Config{
		BaseURL:     cfg.Lookup.URL,
		APIKey:      cfg.Lookup.APIKey,
		Timeout:     cfg.Lookup.Timeout,
		MaxAttempts: cfg.Lookup.MaxAttempts,
		RateLimit:   cfg.Lookup.RateLimit,
	})

	app := &App{Options: opts}
	sinks := pipeline.Sinks{csvio.FileSink{
		Dir:         opts.OutputDir,
		PriceColumn: opts.PriceColumn,
		Workbook:    cfg.Pipeline.AnomalyWorkbook,
		PerRun:      perRun,
	}}

	if cfg.Database.URL != "" {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.pool = pool

		pg := storage.NewPostgresSink(pool, opts.IDColumn, opts.PriceColumn)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		sinks = append(sinks, pg)
	}

	app.Pipeline = pipeline.New(opts, client, sinks)
	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
