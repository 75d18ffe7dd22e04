package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestReadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := readConfig()
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
	require.Equal(t, 60*time.Second, cfg.CacheTTL)
	require.Equal(t, 200*time.Millisecond, cfg.FetchDelay)
	require.Equal(t, strategySliding, cfg.RateStrategy)
	require.Equal(t, 5, cfg.RateBurstLimit)
	require.Equal(t, 10, cfg.RateLimit)
}

func TestReadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"listen_addr: \":9000\"",
		"cache_ttl: 30s",
		"fetch_delay: 50ms",
		"rate_strategy: token",
		"rate_rps: 2.5",
		"directory_url: http://directory:8081",
	}, "\n")), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("RATE_BURST", "7")

	cfg, err := readConfig()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.Equal(t, 50*time.Millisecond, cfg.FetchDelay)
	require.Equal(t, strategyToken, cfg.RateStrategy)
	require.Equal(t, 2.5, cfg.RateRPS)
	require.Equal(t, 7, cfg.RateBurst)
	require.Equal(t, "http://directory:8081", cfg.DirectoryURL)
}

func TestReadConfigLowRPSDefaultsBurstToOne(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RATE_STRATEGY", "TOKEN")
	t.Setenv("RATE_RPS", "0.5")

	cfg, err := readConfig()
	require.NoError(t, err)
	require.Equal(t, strategyToken, cfg.RateStrategy)
	require.Equal(t, 1, cfg.RateBurst)
}

func TestReadConfigCollectsAllErrors(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CACHE_TTL", "-1s")
	t.Setenv("RATE_STRATEGY", "leaky")
	t.Setenv("RATE_STATS_ENABLED", "true")

	_, err := readConfig()
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "want *multierror.Error, got %T", err)
	require.Len(t, merr.Errors, 3)
	require.Contains(t, err.Error(), "CACHE_TTL")
	require.Contains(t, err.Error(), "RATE_STRATEGY")
	require.Contains(t, err.Error(), "RATE_STATS_REDIS_ADDR")
}

func TestReadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_ttl: [nope"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := readConfig()
	require.Error(t, err)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = readConfig()
	require.Error(t, err)
}
