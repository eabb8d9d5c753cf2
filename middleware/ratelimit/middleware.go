package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"genai-gateway/middleware/ratelimit/application"
	"genai-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// SourceLocal marca respostas 429 geradas pelo próprio proxy (e não pelo upstream).
const SourceLocal = "local_proxy"

type KeyFunc func(r *http.Request) string

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	Strategy            string
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              *zap.Logger
}

// windowInfo é implementado pela janela deslizante.
type windowInfo interface {
	Window() time.Duration
	MaxRequests() int
}

// bucketInfo é implementado pelo token bucket.
type bucketInfo interface {
	RPS() float64
	Burst() int
}

// DefaultKeyFunc identifica o cliente, nesta ordem:
//
//  1. header configurado (keyHeader), se presente
//  2. primeiro IP do X-Forwarded-For (se trustXFF)
//  3. X-Real-IP (se trustXFF)
//  4. host do RemoteAddr
//  5. "unknown"
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		// fallback: RemoteAddr
		addr := strings.TrimSpace(r.RemoteAddr)
		host, _, err := net.SplitHostPort(addr)
		if err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return "unknown"
	}
}

// Middleware aplica o controle de admissão antes de qualquer trabalho no upstream.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				setLimitHeaders(w.Header(), key, opts.Store)
			}

			dec := svc.Decide(domain.Key(key))
			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      domain.Key(key),
					Allowed:  dec.Allowed,
					Strategy: opts.Strategy,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       time.Now(),
				})
				if err != nil {
					opts.Logger.Warn("admission stats failed", zap.Error(err))
				}
			}
			if !dec.Allowed {
				opts.Logger.Info("request rejected by local rate limit",
					zap.String("client", key),
					zap.Duration("retry_after", dec.RetryAfter))
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				writeJSON(w, opts.RejectStatus, rejection{
					Error:      "Too many requests",
					Source:     SourceLocal,
					RetryAfter: retryAfterSeconds(dec.RetryAfter),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClientKey(r.Context(), key)))
		})
	}
}

type rejection struct {
	Error      string `json:"error"`
	Source     string `json:"source"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func setLimitHeaders(h http.Header, key string, store domain.LimiterStore) {
	h.Set("X-RateLimit-Key", key)
	switch s := store.(type) {
	case windowInfo:
		h.Set("X-RateLimit-Limit", formatInt(s.MaxRequests()))
		h.Set("X-RateLimit-Window", formatInt(int(s.Window().Seconds())))
	case bucketInfo:
		h.Set("X-RateLimit-RPS", formatFloat(s.RPS()))
		h.Set("X-RateLimit-Burst", formatInt(s.Burst()))
	}
}

// retryAfterSeconds arredonda para cima: Retry-After=0 faria o cliente voltar cedo demais.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
