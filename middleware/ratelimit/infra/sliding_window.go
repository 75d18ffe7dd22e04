package infra

import (
	"sync"
	"time"

	"seat-gateway/middleware/ratelimit/domain"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway/ratelimit")

const (
	DefaultBurstLimit      = 5
	DefaultBurstWindow     = 10 * time.Second
	DefaultSustainedLimit  = 10
	DefaultSustainedWindow = 60 * time.Second
	DefaultWindowSweep     = 60 * time.Second
)

// SlidingWindowStore é o limitador de admissão por janela deslizante.
//
// Cada cliente tem duas sequências de timestamps: burst (janela curta) e
// requests (janela longa). Um timestamp conta enquanto now-ts < janela.
// O limite de burst é avaliado antes do sustentado; requisições rejeitadas
// não são registradas.
type SlidingWindowStore struct {
	mu      sync.Mutex
	records map[string]*clientRecord

	burstLimit      int
	burstWindow     time.Duration
	sustainedLimit  int
	sustainedWindow time.Duration
	sweepEvery      time.Duration
	now             func() time.Time
}

type clientRecord struct {
	requests []time.Time
	burst    []time.Time
}

type SlidingWindowOption func(*SlidingWindowStore)

func WithBurst(limit int, window time.Duration) SlidingWindowOption {
	return func(s *SlidingWindowStore) {
		s.burstLimit = limit
		s.burstWindow = window
	}
}

func WithSustained(limit int, window time.Duration) SlidingWindowOption {
	return func(s *SlidingWindowStore) {
		s.sustainedLimit = limit
		s.sustainedWindow = window
	}
}

// WithSweepEvery define o intervalo do janitor. 0 desliga o janitor.
func WithSweepEvery(d time.Duration) SlidingWindowOption {
	return func(s *SlidingWindowStore) { s.sweepEvery = d }
}

// WithWindowClock troca o relógio usado pelo janitor (testes).
func WithWindowClock(now func() time.Time) SlidingWindowOption {
	return func(s *SlidingWindowStore) { s.now = now }
}

func NewSlidingWindowStore(opts ...SlidingWindowOption) *SlidingWindowStore {
	s := &SlidingWindowStore{
		records:         make(map[string]*clientRecord),
		burstLimit:      DefaultBurstLimit,
		burstWindow:     DefaultBurstWindow,
		sustainedLimit:  DefaultSustainedLimit,
		sustainedWindow: DefaultSustainedWindow,
		sweepEvery:      DefaultWindowSweep,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlidingWindowStore) BurstLimit() (int, time.Duration) {
	return s.burstLimit, s.burstWindow
}

func (s *SlidingWindowStore) SustainedLimit() (int, time.Duration) {
	return s.sustainedLimit, s.sustainedWindow
}

// CheckAndRecord implementa domain.Admitter.
func (s *SlidingWindowStore) CheckAndRecord(key domain.Key, now time.Time) domain.Verdict {
	k := string(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[k]
	if !ok {
		rec = &clientRecord{}
		s.records[k] = rec
	}
	rec.burst = prune(rec.burst, now, s.burstWindow)
	rec.requests = prune(rec.requests, now, s.sustainedWindow)

	if len(rec.burst) >= s.burstLimit {
		return domain.Verdict{
			Kind:       domain.KindBurst,
			Limit:      s.burstLimit,
			Window:     s.burstWindow,
			RetryAfter: retryAfter(rec.burst, s.burstLimit, now, s.burstWindow),
		}
	}
	if len(rec.requests) >= s.sustainedLimit {
		return domain.Verdict{
			Kind:       domain.KindRate,
			Limit:      s.sustainedLimit,
			Window:     s.sustainedWindow,
			RetryAfter: retryAfter(rec.requests, s.sustainedLimit, now, s.sustainedWindow),
		}
	}

	rec.burst = append(rec.burst, now)
	rec.requests = append(rec.requests, now)
	return domain.Verdict{Allowed: true}
}

// Sweep poda as duas sequências de todos os clientes e remove os que ficaram vazios.
// Retorna quantos clientes foram removidos.
func (s *SlidingWindowStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		rec.burst = prune(rec.burst, now, s.burstWindow)
		rec.requests = prune(rec.requests, now, s.sustainedWindow)
		if len(rec.burst) == 0 && len(rec.requests) == 0 {
			delete(s.records, k)
			removed++
		}
	}
	return removed
}

// Len retorna quantos clientes têm registro ativo.
func (s *SlidingWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// StartJanitor inicia a varredura periódica. Pare cancelando o contexto ou chamando stop.
func (s *SlidingWindowStore) StartJanitor(ctx DoneContext) (stop func()) {
	return runJanitor(ctx, s.sweepEvery, func() {
		if n := s.Sweep(s.now()); n > 0 {
			log.Debugw("swept idle clients", "removed", n)
		}
	})
}

// prune mantém, em ordem, os timestamps com now-ts < window.
func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// retryAfter estima quando a contagem cai abaixo do limite: o momento em que o
// timestamp na posição len-limit sai da janela.
func retryAfter(ts []time.Time, limit int, now time.Time, window time.Duration) time.Duration {
	if limit <= 0 || len(ts) < limit {
		return 0
	}
	d := window - now.Sub(ts[len(ts)-limit])
	if d < 0 {
		return 0
	}
	return d
}
