package application

import (
	"time"

	"seat-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação da admissão.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// RetryAfter é o fallback quando o Admitter não estima o tempo de espera.
type Service struct {
	Admitter   domain.Admitter
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key, now time.Time) domain.Decision {
	if s.Admitter == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	v := s.Admitter.CheckAndRecord(key, now)
	if v.Allowed {
		return domain.Decision{Allowed: true}
	}

	retry := v.RetryAfter
	if retry <= 0 {
		retry = s.RetryAfter
	}
	return domain.Decision{
		Allowed:    false,
		Kind:       v.Kind,
		Limit:      v.Limit,
		Window:     v.Window,
		RetryAfter: retry,
	}
}
