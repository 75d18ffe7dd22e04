package application

import (
	"context"
	"time"

	"seat-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService limita quantas requisições ficam em voo ao mesmo tempo no gateway.
// Não sabe nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// Com AcquireTimeout <= 0 espera até o ctx cancelar; caso contrário espera no máximo AcquireTimeout.
// Se ok=false, nenhuma vaga foi adquirida e release não deve ser chamado.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}
