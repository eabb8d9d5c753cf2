package infra

import (
	"context"

	"genai-gateway/middleware/ratelimit/domain"

	"go.uber.org/multierr"
)

// MultiStatsStore repassa o evento para todos os stores.
// Um store falhando não impede os demais; os erros voltam combinados.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Record(ctx, ev))
	}
	return err
}
