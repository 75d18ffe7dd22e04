package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seat-gateway/api"
	"seat-gateway/directory"
	"seat-gateway/lookup"
	"seat-gateway/lookup/cache"
	"seat-gateway/lookup/coalesce"
	"seat-gateway/metrics"
	"seat-gateway/middleware/ratelimit"
	"seat-gateway/middleware/ratelimit/domain"
	"seat-gateway/middleware/ratelimit/infra"

	logging "github.com/ipfs/go-log/v2"
	"github.com/redis/go-redis/v9"
)

var log = logging.Logger("gateway")

func main() {
	cfg, err := readConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := setLogLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Errorw("Gateway stopped with error", "err", err)
		os.Exit(1)
	}
}

func setLogLevel(level string) error {
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return err
	}
	logging.SetAllLoggers(lvl)
	return nil
}

type gateway struct {
	handler http.Handler
	queue   *coalesce.Coalescer[int, directory.User]
	cleanup []func()
}

// newGateway monta o caminho completo: borda (CORS, request ID) -> admissão ->
// concorrência -> api -> cache -> fila de fetch -> diretório. /metrics fica fora do portão.
func newGateway(ctx context.Context, cfg config) (*gateway, error) {
	g := &gateway{}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	dir, err := newDirectory(cfg)
	if err != nil {
		return nil, err
	}

	cacheOpts := []cache.Option{
		cache.WithSweepEvery(cfg.CacheSweepEvery),
		cache.WithMaxEntries(cfg.CacheMaxEntries),
	}
	fetchOpts := []coalesce.Option[int]{
		coalesce.WithDelay[int](cfg.FetchDelay),
		coalesce.WithWindowSize[int](cfg.FetchWindow),
	}
	if m != nil {
		cacheOpts = append(cacheOpts, cache.WithObserver(m.Cache()))
		fetchOpts = append(fetchOpts, coalesce.WithObserver[int](m.Coalescer()))
	}
	userCache := cache.New[directory.User](cfg.CacheTTL, cacheOpts...)
	g.cleanup = append(g.cleanup, userCache.Close)
	g.queue = coalesce.New(dir.UserByID, fetchOpts...)

	resolver := lookup.NewResolver[int, directory.User](userCache, g.queue, directory.UserCacheKey)

	h := api.New(resolver, dir).Routes()
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
	})(h)

	if cfg.RateEnabled {
		stats, closeStats, err := newStatsStore(cfg, m)
		if err != nil {
			g.close(ctx)
			return nil, err
		}
		g.cleanup = append(g.cleanup, closeStats)

		admitter, stopJanitor := newAdmitter(ctx, cfg)
		g.cleanup = append(g.cleanup, stopJanitor)

		h = ratelimit.Middleware(ratelimit.Options{
			Admitter:            admitter,
			Stats:               stats,
			KeyHeader:           cfg.RateKeyHeader,
			TrustXForwardedFor:  cfg.TrustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: cfg.AddRateLimitHeaders,
		})(h)
	}
	// CORS e request ID por fora da admissão: preflight não consome cota e
	// o 429 sai com os headers legíveis pelo browser.
	h = api.Edge(h)

	root := http.NewServeMux()
	if m != nil {
		root.Handle("GET /metrics", m.Handler())
	}
	root.Handle("/", h)
	g.handler = root
	return g, nil
}

// close drena a fila de fetch e libera o resto, na ordem inversa.
func (g *gateway) close(ctx context.Context) {
	if g.queue != nil {
		if err := g.queue.Close(ctx); err != nil {
			log.Warnw("Fetch queue did not drain", "pending", g.queue.Pending(), "err", err)
		}
	}
	for i := len(g.cleanup) - 1; i >= 0; i-- {
		g.cleanup[i]()
	}
}

func run(cfg config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           g.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Infow("Shutting down")
		_ = srv.Shutdown(shutdownCtx)
		g.close(shutdownCtx)
	}()

	log.Infow("Gateway listening", "addr", cfg.ListenAddr, "directory", directoryName(cfg))
	log.Infow("Cache", "ttl", cfg.CacheTTL, "sweepEvery", cfg.CacheSweepEvery, "maxEntries", cfg.CacheMaxEntries)
	log.Infow("Fetch queue", "delay", cfg.FetchDelay, "window", cfg.FetchWindow)
	log.Infow("Admission", "enabled", cfg.RateEnabled, "strategy", cfg.RateStrategy,
		"burst", fmt.Sprintf("%d/%s", cfg.RateBurstLimit, cfg.RateBurstWindow),
		"sustained", fmt.Sprintf("%d/%s", cfg.RateLimit, cfg.RateWindow),
		"keyHeader", cfg.RateKeyHeader, "trustXFF", cfg.TrustXFF)
	log.Infow("Admission stats", "redis", cfg.RateStatsEnabled, "metrics", cfg.MetricsEnabled)
	log.Infow("Concurrency", "max", cfg.ConcurrencyMax, "acquireTimeout", cfg.ConcurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-shutdownDone
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	log.Infow("Gateway stopped")
	return nil
}

func newDirectory(cfg config) (directory.Directory, error) {
	if cfg.DirectoryURL == "" {
		return directory.NewSeededMemory(time.Now()), nil
	}
	return directory.NewRemote(cfg.DirectoryURL, directory.WithRetryMax(cfg.DirectoryRetryMax))
}

func directoryName(cfg config) string {
	if cfg.DirectoryURL == "" {
		return "memory"
	}
	return cfg.DirectoryURL
}

// newAdmitter escolhe a estratégia e liga o janitor dela.
func newAdmitter(ctx context.Context, cfg config) (domain.Admitter, func()) {
	if cfg.RateStrategy == strategyToken {
		store := infra.NewTokenBucketStore(cfg.RateRPS, cfg.RateBurst)
		return store, store.StartJanitor(ctx)
	}
	store := infra.NewSlidingWindowStore(
		infra.WithBurst(cfg.RateBurstLimit, cfg.RateBurstWindow),
		infra.WithSustained(cfg.RateLimit, cfg.RateWindow),
		infra.WithSweepEvery(cfg.RateSweepEvery),
	)
	return store, store.StartJanitor(ctx)
}

// newStatsStore monta o fan-out de estatísticas: Redis e/ou Prometheus.
func newStatsStore(cfg config, m *metrics.Metrics) (domain.StatsStore, func(), error) {
	var stores infra.MultiStatsStore
	closeFn := func() {}

	if m != nil {
		stores = append(stores, m)
	}

	if cfg.RateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateStatsRedisAddr,
			Password: cfg.RateStatsRedisPassword,
			DB:       cfg.RateStatsRedisDB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis stats ping: %w", err)
		}

		stores = append(stores, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsBucket(cfg.RateStatsBucket),
			infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		))
		closeFn = func() { _ = rdb.Close() }
	}

	switch len(stores) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return stores[0], closeFn, nil
	}
	return stores, closeFn, nil
}
