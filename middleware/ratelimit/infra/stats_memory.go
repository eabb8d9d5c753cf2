package infra

import (
	"context"
	"maps"
	"sync"
	"time"

	"genai-gateway/middleware/ratelimit/domain"
)

// Counters soma decisões permitidas e negadas.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// DenyRatio é a fração de requisições negadas (0 sem tráfego).
func (c Counters) DenyRatio() float64 {
	if n := c.Allowed + c.Denied; n > 0 {
		return float64(c.Denied) / float64(n)
	}
	return 0
}

// StatsSnapshot é uma cópia consistente dos contadores em memória.
type StatsSnapshot struct {
	Total      Counters            `json:"total"`
	ByStrategy map[string]Counters `json:"byStrategy"`
	ByRoute    map[string]Counters `json:"byRoute"`
	ByKey      map[string]Counters `json:"byKey,omitempty"`
	LastDenied time.Time           `json:"lastDenied,omitzero"`
}

// MemoryStatsStore mantém os mesmos agregados do RedisStatsStore, só que no
// processo. Serve para desenvolvimento e testes; nada expira.
type MemoryStatsStore struct {
	trackKeys bool

	mu   sync.Mutex
	snap StatsSnapshot
}

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackKeys liga os contadores por cliente. Sem limite de chaves: cuidado em produção.
func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{snap: StatsSnapshot{
		ByStrategy: map[string]Counters{},
		ByRoute:    map[string]Counters{},
		ByKey:      map[string]Counters{},
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bump(m map[string]Counters, k string, allowed bool) {
	c := m[k]
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	m[k] = c
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Allowed {
		s.snap.Total.Allowed++
	} else {
		s.snap.Total.Denied++
		s.snap.LastDenied = ev.At
	}
	if ev.Strategy != "" {
		bump(s.snap.ByStrategy, ev.Strategy, ev.Allowed)
	}
	bump(s.snap.ByRoute, ev.Method+" "+ev.Path, ev.Allowed)
	if s.trackKeys {
		bump(s.snap.ByKey, string(ev.Key), ev.Allowed)
	}
	return nil
}

// Snapshot devolve uma cópia; os mapas podem ser alterados por quem chama.
func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.ByStrategy = maps.Clone(s.snap.ByStrategy)
	out.ByRoute = maps.Clone(s.snap.ByRoute)
	out.ByKey = maps.Clone(s.snap.ByKey)
	return out
}

func (s *MemoryStatsStore) Total() Counters { return s.Snapshot().Total }
