package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	strategySliding = "sliding"
	strategyToken   = "token"
)

// config é lida de CONFIG_FILE (YAML, opcional) e depois sobrescrita pelas
// variáveis de ambiente.
type config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheSweepEvery time.Duration `yaml:"cache_sweep_every"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`

	FetchDelay  time.Duration `yaml:"fetch_delay"`
	FetchWindow int           `yaml:"fetch_window"`

	RateEnabled         bool          `yaml:"rate_enabled"`
	RateStrategy        string        `yaml:"rate_strategy"`
	RateBurstLimit      int           `yaml:"rate_burst_limit"`
	RateBurstWindow     time.Duration `yaml:"rate_burst_window"`
	RateLimit           int           `yaml:"rate_limit"`
	RateWindow          time.Duration `yaml:"rate_window"`
	RateSweepEvery      time.Duration `yaml:"rate_sweep_every"`
	RateRPS             float64       `yaml:"rate_rps"`
	RateBurst           int           `yaml:"rate_burst"`
	RateKeyHeader       string        `yaml:"rate_key_header"`
	TrustXFF            bool          `yaml:"trust_xff"`
	RetryAfter          time.Duration `yaml:"retry_after"`
	AddRateLimitHeaders bool          `yaml:"add_ratelimit_headers"`
	ConcurrencyMax      int           `yaml:"concurrency_max"`
	ConcurrencyTimeout  time.Duration `yaml:"concurrency_timeout"`

	RateStatsEnabled       bool          `yaml:"rate_stats_enabled"`
	RateStatsRedisAddr     string        `yaml:"rate_stats_redis_addr"`
	RateStatsRedisPassword string        `yaml:"rate_stats_redis_password"`
	RateStatsRedisDB       int           `yaml:"rate_stats_redis_db"`
	RateStatsPrefix        string        `yaml:"rate_stats_prefix"`
	RateStatsTTL           time.Duration `yaml:"rate_stats_ttl"`
	RateStatsBucket        string        `yaml:"rate_stats_bucket"`
	RateStatsTrackKeys     bool          `yaml:"rate_stats_track_keys"`

	DirectoryURL      string `yaml:"directory_url"`
	DirectoryRetryMax int    `yaml:"directory_retry_max"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
}

func defaultConfig() config {
	return config{
		ListenAddr: ":8080",
		LogLevel:   "info",

		CacheTTL:        60 * time.Second,
		CacheSweepEvery: 10 * time.Second,

		FetchDelay:  200 * time.Millisecond,
		FetchWindow: 1000,

		RateEnabled:     true,
		RateStrategy:    strategySliding,
		RateBurstLimit:  5,
		RateBurstWindow: 10 * time.Second,
		RateLimit:       10,
		RateWindow:      60 * time.Second,
		RateSweepEvery:  60 * time.Second,
		RateRPS:         10,
		RateBurst:       20,
		RetryAfter:      1 * time.Second,
		ConcurrencyMax:  100,

		RateStatsPrefix: "admission:stats",
		RateStatsTTL:    24 * time.Hour,
		RateStatsBucket: "minute",

		DirectoryRetryMax: 3,

		MetricsEnabled: true,
	}
}

func readConfig() (config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return config{}, err
		}
	}

	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.CacheTTL = getenvDurationDefault("CACHE_TTL", cfg.CacheTTL)
	cfg.CacheSweepEvery = getenvDurationDefault("CACHE_SWEEP_EVERY", cfg.CacheSweepEvery)
	cfg.CacheMaxEntries = getenvIntDefault("CACHE_MAX_ENTRIES", cfg.CacheMaxEntries)

	cfg.FetchDelay = getenvDurationDefault("FETCH_DELAY", cfg.FetchDelay)
	cfg.FetchWindow = getenvIntDefault("FETCH_WINDOW", cfg.FetchWindow)

	cfg.RateEnabled = getenvBoolDefault("RATE_ENABLED", cfg.RateEnabled)
	cfg.RateStrategy = strings.ToLower(getenvDefault("RATE_STRATEGY", cfg.RateStrategy))
	cfg.RateBurstLimit = getenvIntDefault("RATE_BURST_LIMIT", cfg.RateBurstLimit)
	cfg.RateBurstWindow = getenvDurationDefault("RATE_BURST_WINDOW", cfg.RateBurstWindow)
	cfg.RateLimit = getenvIntDefault("RATE_LIMIT", cfg.RateLimit)
	cfg.RateWindow = getenvDurationDefault("RATE_WINDOW", cfg.RateWindow)
	cfg.RateSweepEvery = getenvDurationDefault("RATE_SWEEP_EVERY", cfg.RateSweepEvery)
	cfg.RateRPS = getenvFloatDefault("RATE_RPS", cfg.RateRPS)
	// IMPORTANTE: o "burst" do token bucket permite uma rajada inicial.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 dá a impressão de que o
	// limiter não funciona, porque as primeiras ~20 passam.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.RateBurst = burst
	} else if getenvIsSet("RATE_RPS") && cfg.RateRPS > 0 && cfg.RateRPS < 1 {
		cfg.RateBurst = 1
	}
	cfg.RateKeyHeader = getenvDefault("RATE_KEY_HEADER", cfg.RateKeyHeader)
	cfg.TrustXFF = getenvBoolDefault("TRUST_XFF", cfg.TrustXFF)
	cfg.RetryAfter = getenvDurationDefault("RETRY_AFTER", cfg.RetryAfter)
	cfg.AddRateLimitHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.AddRateLimitHeaders)
	cfg.ConcurrencyMax = getenvIntDefault("CONCURRENCY_MAX", cfg.ConcurrencyMax)
	cfg.ConcurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.ConcurrencyTimeout)

	cfg.RateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", cfg.RateStatsEnabled)
	cfg.RateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", cfg.RateStatsRedisAddr)
	cfg.RateStatsRedisPassword = getenvDefault("RATE_STATS_REDIS_PASSWORD", cfg.RateStatsRedisPassword)
	cfg.RateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", cfg.RateStatsRedisDB)
	cfg.RateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", cfg.RateStatsPrefix)
	cfg.RateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", cfg.RateStatsTTL)
	cfg.RateStatsBucket = getenvDefault("RATE_STATS_BUCKET", cfg.RateStatsBucket)
	cfg.RateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.RateStatsTrackKeys)

	cfg.DirectoryURL = getenvDefault("DIRECTORY_URL", cfg.DirectoryURL)
	cfg.DirectoryRetryMax = getenvIntDefault("DIRECTORY_RETRY_MAX", cfg.DirectoryRetryMax)

	cfg.MetricsEnabled = getenvBoolDefault("METRICS_ENABLED", cfg.MetricsEnabled)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// validate junta todos os problemas num único erro.
func (cfg config) validate() error {
	var errs error
	fail := func(msg string) { errs = multierror.Append(errs, errors.New(msg)) }

	if cfg.CacheTTL <= 0 {
		fail("CACHE_TTL must be > 0")
	}
	if cfg.CacheMaxEntries < 0 {
		fail("CACHE_MAX_ENTRIES must be >= 0")
	}
	if cfg.FetchDelay < 0 {
		fail("FETCH_DELAY must be >= 0")
	}
	if cfg.FetchWindow <= 0 {
		fail("FETCH_WINDOW must be > 0")
	}

	switch cfg.RateStrategy {
	case strategySliding:
		if cfg.RateBurstLimit <= 0 || cfg.RateBurstWindow <= 0 {
			fail("RATE_BURST_LIMIT and RATE_BURST_WINDOW must be > 0")
		}
		if cfg.RateLimit <= 0 || cfg.RateWindow <= 0 {
			fail("RATE_LIMIT and RATE_WINDOW must be > 0")
		}
	case strategyToken:
		if cfg.RateRPS <= 0 {
			fail("RATE_RPS must be > 0")
		}
		if cfg.RateBurst <= 0 {
			fail("RATE_BURST must be > 0")
		}
	default:
		fail(fmt.Sprintf("RATE_STRATEGY must be %q or %q, got %q", strategySliding, strategyToken, cfg.RateStrategy))
	}

	if cfg.ConcurrencyMax < 0 {
		fail("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.RateStatsEnabled && strings.TrimSpace(cfg.RateStatsRedisAddr) == "" {
		fail("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.DirectoryRetryMax < 0 {
		fail("DIRECTORY_RETRY_MAX must be >= 0")
	}
	return errs
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
