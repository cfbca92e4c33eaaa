package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogsync/internal/config"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/upload"
)

func baseConfig() *config.Config {
	return &config.Config{
		Ingest: config.IngestConfig{Concurrency: 3, MinImageEdge: 1200, Strict: true, Backup: true, BackupDir: "bk"},
		Sync: config.SyncConfig{
			CatalogPath:   "data/catalog.json",
			StatePath:     "data/upload-state.json",
			ProcessedPath: "data/processed.json",
			WorkDir:       "data/work",
		},
	}
}

func TestBuild_OptionalPartsOff(t *testing.T) {
	cfg := baseConfig()
	app, err := Build(context.Background(), cfg, Options{History: true, Sync: true})
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Service.HistoryEnabled())
	assert.False(t, app.Service.SyncEnabled())
	assert.Equal(t, 3, app.Service.Limiter().MaxConcurrent())
}

func TestBuild_SyncWithStaticKeys(t *testing.T) {
	cfg := baseConfig()
	cfg.Bucket = config.BucketConfig{
		Name:            "submissions",
		Region:          "auto",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
	}

	app, err := Build(context.Background(), cfg, Options{Sync: true})
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.Service.SyncEnabled())

	app2, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.False(t, app2.Service.SyncEnabled(), "sync not requested")
}

func TestBuild_BadDatabaseURL(t *testing.T) {
	cfg := baseConfig()
	cfg.Database.URL = "postgres://%zz"
	cfg.Database.MaxConns = 1

	_, err := Build(context.Background(), cfg, Options{History: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database URL")
}

func TestConnectImages_MissingCredentials(t *testing.T) {
	connect := ConnectImages(config.ImagesConfig{AccountID: "acct"})
	_, err := connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.RemoteError)
}

func TestConnectImages_Configured(t *testing.T) {
	connect := ConnectImages(config.ImagesConfig{AccountID: "acct", Token: "tok"})
	host, err := connect()
	require.NoError(t, err)
	assert.IsType(t, &upload.Cloudflare{}, host)
}

func TestSyncDefaults(t *testing.T) {
	req := SyncDefaults(baseConfig())
	assert.Equal(t, "data/catalog.json", req.CatalogPath)
	assert.Equal(t, "data/upload-state.json", req.StatePath)
	assert.Equal(t, 3, req.Concurrency)
	assert.Equal(t, 1200, req.MinEdge)
	assert.True(t, req.Strict)
	assert.True(t, req.Backup)
	assert.Equal(t, "bk", req.BackupDir)
	assert.False(t, req.Merge, "merge mode is forced per submission")
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "catalog", databaseName("postgres://u:p@localhost:5432/catalog?sslmode=disable"))
}
