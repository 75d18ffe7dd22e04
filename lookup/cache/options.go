package cache

import "time"

const (
	DefaultTTL        = 60 * time.Second
	DefaultSweepEvery = 10 * time.Second
)

type config struct {
	sweepEvery time.Duration
	maxEntries int
	now        func() time.Time
	observer   Observer
}

type Option func(*config)

// WithSweepEvery define o intervalo da varredura em background. Zero desliga.
func WithSweepEvery(d time.Duration) Option {
	return func(c *config) { c.sweepEvery = d }
}

// WithMaxEntries limita o número de entradas. Quando uma escrita passa de n,
// sai a entrada com a menor sequência de acesso. Zero (o padrão) é sem limite.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithClock troca o time.Now, em geral nos testes.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithObserver registra um Observer para os eventos do cache.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

func newConfig(opts []Option) config {
	cfg := config{
		sweepEvery: DefaultSweepEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.observer == nil {
		cfg.observer = NoopObserver{}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}
