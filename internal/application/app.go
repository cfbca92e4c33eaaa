// Package application assembles a core.Service from configuration. Both
// binaries build their service here so the daemon and the command-line tool
// see the same defaults, image host and run history.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalogsync/internal/config"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/remotesync"
	"github.com/JonMunkholm/catalogsync/internal/upload"
)

// Options selects the optional parts of an App.
type Options struct {
	// History opens the database when one is configured.
	History bool
	// Sync connects the submission bucket when one is configured.
	Sync   bool
	Logger *slog.Logger
}

// App owns a Service and the resources behind it.
type App struct {
	Config  *config.Config
	Service *core.Service
	pool    *pgxpool.Pool
}

// Build creates the App. Unconfigured optional parts are left out rather
// than failing; a configured part that cannot be reached is an error.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	app := &App{Config: cfg}

	deps := core.Deps{
		Connect: ConnectImages(cfg.Images),
		Limiter: upload.NewLimiter(cfg.Ingest.Concurrency),
		Logger:  log,
	}

	if opts.History && cfg.Database.Enabled() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.pool = pool
		history := core.NewHistory(pool)
		if err := history.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate run history: %w", err)
		}
		deps.History = history
		log.Info("run history enabled", "database", databaseName(cfg.Database.URL))
	}

	if opts.Sync && cfg.Bucket.Enabled() {
		bucket, err := remotesync.NewS3Bucket(ctx, remotesync.BucketConfig{
			Name:            cfg.Bucket.Name,
			Region:          cfg.Bucket.Region,
			Endpoint:        cfg.Bucket.Endpoint,
			AccessKeyID:     cfg.Bucket.AccessKeyID,
			SecretAccessKey: cfg.Bucket.SecretAccessKey,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		deps.Sync = &core.SyncConfig{
			Bucket:        bucket,
			Prefix:        cfg.Bucket.Prefix,
			ProcessedPath: cfg.Sync.ProcessedPath,
			WorkDir:       cfg.Sync.WorkDir,
			Defaults:      SyncDefaults(cfg),
		}
		log.Info("bucket sync enabled", "bucket", cfg.Bucket.Name, "prefix", cfg.Bucket.Prefix)
	}

	app.Service = core.NewService(deps)
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// ConnectImages returns the image host factory for cfg. Missing
// credentials surface when the first upload is attempted, so commands that
// never upload work without them.
func ConnectImages(cfg config.ImagesConfig) func() (upload.Host, error) {
	cf := upload.CloudflareConfig{
		AccountID: cfg.AccountID,
		Token:     cfg.Token,
		APIBase:   cfg.APIBase,
		Timeout:   cfg.Timeout,
	}
	return func() (upload.Host, error) {
		if err := cf.Validate(); err != nil {
			return nil, err
		}
		return upload.NewCloudflare(cf), nil
	}
}

// SyncDefaults is the run request every bucket submission starts from.
func SyncDefaults(cfg *config.Config) core.RunRequest {
	return core.RunRequest{
		StatePath:   cfg.Sync.StatePath,
		CatalogPath: cfg.Sync.CatalogPath,
		Strict:      cfg.Ingest.Strict,
		Replace:     cfg.Ingest.Replace,
		Recursive:   cfg.Ingest.Recursive,
		Backup:      cfg.Ingest.Backup,
		BackupDir:   cfg.Ingest.BackupDir,
		Concurrency: cfg.Ingest.Concurrency,
		MinEdge:     cfg.Ingest.MinImageEdge,
	}
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// databaseName returns the database part of a connection URL for logging.
func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
