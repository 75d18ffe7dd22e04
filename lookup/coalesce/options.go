package coalesce

import (
	"fmt"
	"time"
)

const (
	DefaultDelay      = 200 * time.Millisecond
	DefaultWindowSize = 1000
)

type config[K comparable] struct {
	delay      time.Duration
	windowSize int
	keyString  func(K) string
	observer   Observer
}

type Option[K comparable] func(*config[K])

// WithDelay define a latência simulada antes de cada chamada ao backend.
func WithDelay[K comparable](d time.Duration) Option[K] {
	return func(c *config[K]) { c.delay = d }
}

// WithWindowSize define quantas amostras de latência entram na média.
func WithWindowSize[K comparable](n int) Option[K] {
	return func(c *config[K]) { c.windowSize = n }
}

// WithKeyString define como a chave vira identidade de deduplicação. O padrão
// é fmt.Sprint, que serve para inteiros e strings.
func WithKeyString[K comparable](fn func(K) string) Option[K] {
	return func(c *config[K]) { c.keyString = fn }
}

// WithObserver registra um Observer para os eventos de busca.
func WithObserver[K comparable](o Observer) Option[K] {
	return func(c *config[K]) { c.observer = o }
}

func newConfig[K comparable](opts []Option[K]) config[K] {
	cfg := config[K]{
		delay:      DefaultDelay,
		windowSize: DefaultWindowSize,
		keyString:  func(k K) string { return fmt.Sprint(k) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.observer == nil {
		cfg.observer = NoopObserver{}
	}
	if cfg.windowSize <= 0 {
		cfg.windowSize = DefaultWindowSize
	}
	return cfg
}
