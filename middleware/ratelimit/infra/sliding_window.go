package infra

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"genai-gateway/middleware/ratelimit/domain"
)

// Eviction define o que fazer quando a tabela de clientes passa do limite.
type Eviction int

const (
	// EvictionReset limpa a tabela inteira ao passar de MaxClients.
	// Limitação conhecida: logo após o reset todos os clientes ficam
	// momentaneamente sem limite.
	EvictionReset Eviction = iota
	// EvictionLRU descarta só o cliente visto há mais tempo.
	EvictionLRU
)

func (e Eviction) String() string {
	switch e {
	case EvictionReset:
		return "reset"
	case EvictionLRU:
		return "lru"
	default:
		return fmt.Sprintf("eviction(%d)", int(e))
	}
}

// ParseEviction aceita "reset" ou "lru".
func ParseEviction(s string) (Eviction, error) {
	switch s {
	case "", "reset":
		return EvictionReset, nil
	case "lru":
		return EvictionLRU, nil
	default:
		return 0, fmt.Errorf("unknown eviction policy %q", s)
	}
}

// DefaultMaxClients é o high-water mark da tabela de janelas.
const DefaultMaxClients = 5000

// SlidingWindowStore é o controle de admissão por janela deslizante (log de
// timestamps) por cliente.
//
// Para cada chave guarda os instantes (ms desde epoch) das requisições
// admitidas que ainda estão dentro da janela. A limpeza é preguiçosa: acontece
// na próxima checagem daquela chave.
//
// Requisições rejeitadas não ocupam vaga; a sequência filtrada é gravada mesmo
// na rejeição para não acumular timestamps vencidos.
//
// O estado é do processo: em deploy com várias instâncias o limite é aproximado.
type SlidingWindowStore struct {
	clock       domain.Clock
	windowMs    int64
	maxRequests int
	maxClients  int
	eviction    Eviction

	mu      sync.Mutex
	windows map[string]*clientWindow
	// recência, só usada com EvictionLRU (frente = mais recente)
	lru *list.List
}

type clientWindow struct {
	stamps []int64
	elem   *list.Element
}

type SlidingWindowOption func(*SlidingWindowStore)

func WithClock(c domain.Clock) SlidingWindowOption {
	return func(s *SlidingWindowStore) { s.clock = c }
}

func WithMaxClients(n int) SlidingWindowOption {
	return func(s *SlidingWindowStore) { s.maxClients = n }
}

func WithEviction(e Eviction) SlidingWindowOption {
	return func(s *SlidingWindowStore) { s.eviction = e }
}

func NewSlidingWindowStore(window time.Duration, maxRequests int, opts ...SlidingWindowOption) (*SlidingWindowStore, error) {
	if window.Milliseconds() <= 0 {
		return nil, fmt.Errorf("window must be >= 1ms, got %s", window)
	}
	if maxRequests <= 0 {
		return nil, fmt.Errorf("maxRequests must be > 0, got %d", maxRequests)
	}

	s := &SlidingWindowStore{
		clock:       SystemClock{},
		windowMs:    window.Milliseconds(),
		maxRequests: maxRequests,
		maxClients:  DefaultMaxClients,
		eviction:    EvictionReset,
		windows:     make(map[string]*clientWindow),
		lru:         list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SlidingWindowStore) Window() time.Duration {
	return time.Duration(s.windowMs) * time.Millisecond
}

func (s *SlidingWindowStore) MaxRequests() int { return s.maxRequests }

// Len retorna quantos clientes estão na tabela.
func (s *SlidingWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Get implementa domain.LimiterStore.
func (s *SlidingWindowStore) Get(key domain.Key) domain.Limiter {
	return windowLimiter{store: s, key: string(key)}
}

// Admit decide se a requisição do cliente entra.
// Quando rejeita, retryAfter é o tempo até o timestamp mais antigo sair da janela.
func (s *SlidingWindowStore) Admit(key string) (bool, time.Duration) {
	now := s.clock.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = s.insertLocked(key)
	} else if s.eviction == EvictionLRU {
		s.lru.MoveToFront(w.elem)
	}

	// timestamps são crescentes: basta achar o primeiro ainda válido
	keep := 0
	for keep < len(w.stamps) && now-w.stamps[keep] >= s.windowMs {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}

	if len(w.stamps) >= s.maxRequests {
		retry := time.Duration(w.stamps[0]+s.windowMs-now) * time.Millisecond
		return false, retry
	}

	w.stamps = append(w.stamps, now)
	return true, 0
}

// insertLocked cria a janela do cliente aplicando a política de memória.
// Chamador deve segurar mu.
func (s *SlidingWindowStore) insertLocked(key string) *clientWindow {
	if s.maxClients > 0 && len(s.windows) >= s.maxClients {
		switch s.eviction {
		case EvictionLRU:
			if oldest := s.lru.Back(); oldest != nil {
				delete(s.windows, oldest.Value.(string))
				s.lru.Remove(oldest)
			}
		default:
			s.windows = make(map[string]*clientWindow)
			s.lru.Init()
		}
	}

	w := &clientWindow{stamps: make([]int64, 0, s.maxRequests)}
	if s.eviction == EvictionLRU {
		w.elem = s.lru.PushFront(key)
	}
	s.windows[key] = w
	return w
}

// Reset apaga todas as janelas.
func (s *SlidingWindowStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = make(map[string]*clientWindow)
	s.lru.Init()
}

type windowLimiter struct {
	store *SlidingWindowStore
	key   string
}

func (l windowLimiter) Allow() bool {
	ok, _ := l.store.Admit(l.key)
	return ok
}

func (l windowLimiter) AllowHint() (bool, time.Duration) {
	return l.store.Admit(l.key)
}
