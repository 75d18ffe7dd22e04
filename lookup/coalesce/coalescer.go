package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/channelqueue"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/singleflight"
)

var log = logging.Logger("gateway/coalesce")

// ErrClosed é o erro de Fetch depois do Close.
var ErrClosed = errors.New("coalescer closed")

// FetchFunc é a consulta ao backend. found=false quer dizer que a chave não
// existe, o que é um resultado normal e não um erro.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (value V, found bool, err error)

type result[V any] struct {
	value V
	found bool
}

type job[K comparable, V any] struct {
	key       K
	startedAt time.Time
	done      chan outcome[V]
}

type outcome[V any] struct {
	result[V]
	err error
}

// Coalescer deduplica e serializa as buscas no backend.
type Coalescer[K comparable, V any] struct {
	fetch     FetchFunc[K, V]
	delay     time.Duration
	keyString func(K) string
	observer  Observer

	group singleflight.Group
	queue *channelqueue.ChannelQueue[*job[K, V]]

	// mu protege closed, o envio para a fila e o contador de pendentes junto
	// com o aviso ao observer.
	mu      sync.Mutex
	closed  bool
	pending atomic.Int64

	statsMu sync.Mutex
	window  *latencyWindow

	closeOnce sync.Once
	done      chan struct{}
}

// New cria o Coalescer e sobe o worker.
func New[K comparable, V any](fetch FetchFunc[K, V], opts ...Option[K]) *Coalescer[K, V] {
	cfg := newConfig(opts)
	c := &Coalescer[K, V]{
		fetch:     fetch,
		delay:     cfg.delay,
		keyString: cfg.keyString,
		observer:  cfg.observer,
		queue:     channelqueue.New[*job[K, V]](-1),
		window:    newLatencyWindow(cfg.windowSize),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

// Fetch devolve o valor da chave no backend. Se já existe uma busca em
// andamento para a chave, espera por ela em vez de começar outra.
//
// Cancelar ctx só faz este chamador desistir de esperar. A busca continua e
// resolve quem ainda estiver esperando.
func (c *Coalescer[K, V]) Fetch(ctx context.Context, key K) (V, bool, error) {
	var zero V
	started := false
	ch := c.group.DoChan(c.keyString(key), func() (any, error) {
		started = true
		return c.enqueueAndWait(key)
	})

	select {
	case res := <-ch:
		if !started {
			c.observer.Joined()
		}
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result[V])
		return r.value, r.found, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (c *Coalescer[K, V]) enqueueAndWait(key K) (any, error) {
	j := &job[K, V]{
		key:       key,
		startedAt: time.Now(),
		done:      make(chan outcome[V], 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	n := c.pending.Add(1)
	c.observer.Pending(int(n))
	c.queue.In() <- j
	c.mu.Unlock()

	o := <-j.done
	if o.err != nil {
		return nil, o.err
	}
	return o.result, nil
}

func (c *Coalescer[K, V]) run() {
	defer close(c.done)
	for j := range c.queue.Out() {
		c.process(j)
	}
}

func (c *Coalescer[K, V]) process(j *job[K, V]) {
	if c.delay > 0 {
		t := time.NewTimer(c.delay)
		<-t.C
	}

	value, found, err := c.call(j.key)
	elapsed := time.Since(j.startedAt)

	label := OutcomeFound
	switch {
	case err != nil:
		label = OutcomeError
		log.Errorw("backend fetch failed", "key", j.key, "err", err)
	case !found:
		label = OutcomeAbsent
	}
	if err == nil {
		c.statsMu.Lock()
		c.window.add(elapsed)
		c.statsMu.Unlock()
	}

	c.mu.Lock()
	n := c.pending.Add(-1)
	c.observer.Fetched(label, elapsed)
	c.observer.Pending(int(n))
	c.mu.Unlock()

	j.done <- outcome[V]{result: result[V]{value: value, found: found}, err: err}
}

// call chama o backend e transforma panic em erro para o worker não morrer.
func (c *Coalescer[K, V]) call(key K) (value V, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return c.fetch(context.Background(), key)
}

// AverageResponseTime é a latência média das buscas recentes que deram certo,
// medida da entrada na fila até a resposta. Sem amostras, é 0.
func (c *Coalescer[K, V]) AverageResponseTime() time.Duration {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.window.mean()
}

// Samples devolve quantas amostras de latência estão guardadas.
func (c *Coalescer[K, V]) Samples() int {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.window.len()
}

// ClearStats esvazia a janela de latência. Buscas pendentes não mudam.
func (c *Coalescer[K, V]) ClearStats() {
	c.statsMu.Lock()
	c.window.reset()
	c.statsMu.Unlock()
}

// Pending devolve quantas chaves estão na fila sem resposta.
func (c *Coalescer[K, V]) Pending() int {
	return int(c.pending.Load())
}

// Close para de aceitar chaves e espera o worker resolver o que já está na
// fila, ou ctx acabar. Pode ser chamado mais de uma vez.
func (c *Coalescer[K, V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.queue.In())
		c.mu.Unlock()
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
