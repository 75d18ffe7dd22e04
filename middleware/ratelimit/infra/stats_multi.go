package infra

import (
	"context"

	"seat-gateway/middleware/ratelimit/domain"

	"github.com/hashicorp/go-multierror"
)

// MultiStatsStore repassa cada evento para todos os stores.
// Um store com erro não impede os demais; os erros são agregados.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}
