package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "GRPC_PORT", "DB_PATH", "USE_MEMORY_DB", "CATALOG_PATH", "CATALOG_WATCH",
	"PLOTS_DIR", "PLOT_SAMPLES", "JWT_SECRET", "TOKEN_TTL_MINUTES", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 50052, cfg.GRPCPort)
	assert.Equal(t, ":50052", cfg.GRPCAddr())
	assert.Equal(t, "./formulas.db", cfg.DBPath)
	assert.False(t, cfg.UseMemoryDB)
	assert.Empty(t, cfg.CatalogPath)
	assert.True(t, cfg.CatalogWatch)
	assert.Equal(t, "./files/plots", cfg.PlotsDir)
	assert.Equal(t, 800, cfg.PlotSamples)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRPC_PORT", "6000")
	t.Setenv("USE_MEMORY_DB", "true")
	t.Setenv("CATALOG_WATCH", "false")
	t.Setenv("PLOT_SAMPLES", "100000")
	t.Setenv("TOKEN_TTL_MINUTES", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.True(t, cfg.UseMemoryDB)
	assert.False(t, cfg.CatalogWatch)
	assert.Equal(t, 5000, cfg.PlotSamples)
	assert.Equal(t, 5*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("PLOT_SAMPLES", "1")
	t.Setenv("GRPC_PORT", "not a port")
	cfg = FromEnv()
	assert.Equal(t, 2, cfg.PlotSamples)
	assert.Equal(t, 50052, cfg.GRPCPort)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("PLOTS_DIR")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PLOTS_DIR=/tmp/from-dotenv\n"), 0644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("PLOTS_DIR")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv", cfg.PlotsDir)
}

func TestLoadWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}
