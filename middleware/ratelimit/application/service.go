package application

import (
	"time"

	"genai-gateway/middleware/ratelimit/domain"
)

// DefaultRetryAfter é usado quando o limiter não sabe estimar a espera.
const DefaultRetryAfter = 1 * time.Second

// Service concentra a regra de admissão de uma requisição.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

// Decide consulta o limiter da chave uma única vez.
// Se o limiter souber a espera exata (HintedLimiter), ela vence o RetryAfter fixo.
func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	fallback := s.RetryAfter
	if fallback <= 0 {
		fallback = DefaultRetryAfter
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	if hl, ok := lim.(domain.HintedLimiter); ok {
		allowed, hint := hl.AllowHint()
		if allowed {
			return domain.Decision{Allowed: true}
		}
		if hint <= 0 {
			hint = fallback
		}
		return domain.Decision{Allowed: false, RetryAfter: hint}
	}

	if lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: fallback}
}
