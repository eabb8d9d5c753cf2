package application

import (
	"context"
	"errors"
	"time"

	"genai-gateway/middleware/ratelimit/domain"

	"go.uber.org/multierr"
)

// ErrNoSlot indica que nenhuma vaga de chamada ao upstream foi obtida a tempo.
var ErrNoSlot = errors.New("no upstream slot available")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx da requisição cancelar.
//   - AcquireTimeout > 0: espera no máximo AcquireTimeout.
//
// Em caso de falha retorna ErrNoSlot (embrulhando a causa do ctx) e release nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		if err := acqCtx.Err(); err != nil {
			return nil, multierr.Combine(ErrNoSlot, err)
		}
		return nil, ErrNoSlot
	}
	return release, nil
}
