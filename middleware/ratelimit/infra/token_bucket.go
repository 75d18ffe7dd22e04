package infra

import (
	"sync"
	"time"

	"seat-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// TokenBucketStore é a estratégia alternativa de admissão baseada em token-bucket
// (x/time/rate) com cache por chave e limpeza periódica de chaves ociosas.
//
// Toda rejeição é reportada como domain.KindRate.
type TokenBucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenBucketOption func(*TokenBucketStore)

func WithIdleTTL(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.cleanupEvery = d }
}

func NewTokenBucketStore(rps float64, burst int, opts ...TokenBucketOption) *TokenBucketStore {
	s := &TokenBucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenBucketStore) RPS() float64 { return float64(s.rps) }
func (s *TokenBucketStore) Burst() int   { return s.burst }

// CheckAndRecord implementa domain.Admitter.
func (s *TokenBucketStore) CheckAndRecord(key domain.Key, now time.Time) domain.Verdict {
	lim := s.limiter(string(key), now)
	if lim.AllowN(now, 1) {
		return domain.Verdict{Allowed: true}
	}

	v := domain.Verdict{Kind: domain.KindRate, Limit: s.burst}
	if s.rps > 0 {
		v.Window = time.Duration(float64(s.burst) / float64(s.rps) * float64(time.Second))
		if missing := 1 - lim.TokensAt(now); missing > 0 {
			v.RetryAfter = time.Duration(missing / float64(s.rps) * float64(time.Second))
		}
	}
	return v
}

func (s *TokenBucketStore) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup remove buckets não vistos há mais de idleTTL.
func (s *TokenBucketStore) Cleanup(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func (s *TokenBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
func (s *TokenBucketStore) StartJanitor(ctx DoneContext) (stop func()) {
	return runJanitor(ctx, s.cleanupEvery, func() {
		if n := s.Cleanup(time.Now()); n > 0 {
			log.Debugw("removed idle buckets", "removed", n)
		}
	})
}
