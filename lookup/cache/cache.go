package cache

import (
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway/cache")

type entry[V any] struct {
	value      V
	insertedAt time.Time
	accessSeq  uint64
}

// Stats é uma foto dos contadores do cache. Size inclui entradas vencidas que
// ainda não foram varridas.
type Stats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Cache é um cache com TTL seguro para uso concorrente.
type Cache[V any] struct {
	mu            sync.Mutex
	entries       map[string]*entry[V]
	ttl           time.Duration
	hits          uint64
	misses        uint64
	accessCounter uint64

	maxEntries int
	now        func() time.Time
	observer   Observer

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// New cria o cache e inicia a varredura em background. Close para ela.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	cfg := newConfig(opts)
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache[V]{
		entries:    make(map[string]*entry[V]),
		ttl:        ttl,
		maxEntries: cfg.maxEntries,
		now:        cfg.now,
		observer:   cfg.observer,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if cfg.sweepEvery > 0 {
		go c.sweepLoop(cfg.sweepEvery)
	} else {
		close(c.done)
	}
	return c
}

// TTL devolve o time-to-live configurado.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get devolve o valor da chave se existir e não for mais velho que o TTL.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	ent, ok := c.entries[key]
	if !ok {
		c.misses++
		c.observer.Miss()
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	if now.Sub(ent.insertedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		c.observer.Expired(1)
		c.observer.Miss()
		c.observer.Size(len(c.entries))
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	c.hits++
	c.accessCounter++
	ent.accessSeq = c.accessCounter
	value := ent.value
	c.observer.Hit()
	c.mu.Unlock()
	return value, true
}

// Set insere ou substitui o valor da chave. Nunca falha.
func (c *Cache[V]) Set(key string, value V) {
	now := c.now()

	c.mu.Lock()
	c.accessCounter++
	c.entries[key] = &entry[V]{
		value:      value,
		insertedAt: now,
		accessSeq:  c.accessCounter,
	}
	evicted := 0
	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
		evicted++
	}
	if evicted > 0 {
		c.observer.Evicted(evicted)
	}
	c.observer.Size(len(c.entries))
	c.mu.Unlock()
}

// evictOldestLocked remove a entrada com a menor sequência de acesso.
func (c *Cache[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for k, ent := range c.entries {
		if !found || ent.accessSeq < oldestSeq {
			oldestKey, oldestSeq, found = k, ent.accessSeq, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Clear apaga todas as entradas e zera os contadores de hit, miss e acesso.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[V])
	c.hits = 0
	c.misses = 0
	c.accessCounter = 0
	c.observer.Size(0)
	c.mu.Unlock()
}

// Stats devolve o tamanho atual e os contadores desde o último Clear.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:   len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
}

// Sweep remove as entradas mais velhas que o TTL e devolve quantas saíram.
func (c *Cache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for k, ent := range c.entries {
		if now.Sub(ent.insertedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.observer.Expired(removed)
		c.observer.Size(len(c.entries))
	}
	c.mu.Unlock()
	return removed
}

func (c *Cache[V]) sweepLoop(every time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				log.Debugw("swept expired entries", "removed", n)
			}
		}
	}
}

// Close para a varredura e apaga todas as entradas. Pode ser chamado mais de
// uma vez.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done

		c.mu.Lock()
		c.entries = make(map[string]*entry[V])
		c.observer.Size(0)
		c.mu.Unlock()
	})
}
