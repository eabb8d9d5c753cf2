package infra

import (
	"context"
	"sync"

	"genai-gateway/middleware/ratelimit/domain"
)

// chanPool guarda as vagas livres como tokens num channel cheio.
type chanPool struct {
	free chan struct{}
}

// NewChanPool limita a `max` as chamadas simultâneas ao upstream.
func NewChanPool(max int) domain.SlotPool {
	p := &chanPool{free: make(chan struct{}, max)}
	for i := 0; i < max; i++ {
		p.free <- struct{}{}
	}
	return p
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case tok := <-p.free:
		var once sync.Once
		// release repetido não devolve vaga extra
		return func() { once.Do(func() { p.free <- tok }) }, true
	case <-ctx.Done():
		return nil, false
	}
}
