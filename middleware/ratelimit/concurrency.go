package ratelimit

import (
	"net/http"
	"time"

	"genai-gateway/middleware/ratelimit/application"
	"genai-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

// ConcurrencyMiddleware limita quantas requisições admitidas podem estar
// chamando o upstream ao mesmo tempo. Max <= 0 desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				opts.Logger.Warn("no upstream slot", zap.Error(err), zap.Int("max", opts.Max))
				writeJSON(w, opts.RejectStatus, rejection{Error: "Server busy", Source: SourceLocal})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
