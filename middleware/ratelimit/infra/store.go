package infra

import (
	"context"
	"sync"
	"time"

	"genai-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store é a estratégia alternativa de admissão: token bucket (x/time/rate)
// por chave, com limpeza periódica de chaves inativas.
//
// Diferente da janela deslizante, permite rajada (burst) e repõe fichas de forma
// contínua. Selecionada com RATE_STRATEGY=token_bucket.
type Store struct {
	clock        domain.Clock
	mu           sync.Mutex
	entries      map[string]*storeEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func WithStoreClock(c domain.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		clock:        SystemClock{},
		entries:      make(map[string]*storeEntry),
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

func (s *Store) RPS() float64 { return float64(s.rps) }
func (s *Store) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return bucketLimiter{lim: s.limiter(string(key)), clock: s.clock}
}

func (s *Store) limiter(key string) *rate.Limiter {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *Store) Cleanup() {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// bucketLimiter expõe a espera estimada do token bucket como dica de Retry-After.
type bucketLimiter struct {
	lim   *rate.Limiter
	clock domain.Clock
}

func (b bucketLimiter) Allow() bool {
	return b.lim.AllowN(b.clock.Now(), 1)
}

func (b bucketLimiter) AllowHint() (bool, time.Duration) {
	now := b.clock.Now()
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	// não vamos esperar: devolve a ficha
	r.CancelAt(now)
	return false, delay
}
