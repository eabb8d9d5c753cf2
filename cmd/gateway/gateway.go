package main

import (
	"context"
	"fmt"
	"net/http"

	"genai-gateway/dispatch"
	"genai-gateway/dispatch/application"
	dispatchdomain "genai-gateway/dispatch/domain"
	dispatchinfra "genai-gateway/dispatch/infra"
	"genai-gateway/internal/config"
	"genai-gateway/internal/logging"
	"genai-gateway/middleware/ratelimit"
	"genai-gateway/middleware/ratelimit/domain"
	"genai-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// deps são as dependências externas do gateway; nos testes vêm de httptest/registry novo.
type deps struct {
	Viper    *viper.Viper
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Redis    redis.Cmdable // nil desliga as estatísticas no Redis
	HTTP     *http.Client
}

type gateway struct {
	handler http.Handler

	dispatcher *application.Dispatcher
	// tokenBucket só existe com RATE_STRATEGY=token_bucket (precisa de janitor)
	tokenBucket *infra.Store
}

func newGateway(cfg config.Config, d deps) (*gateway, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	gw := &gateway{}

	store, err := gw.admissionStore(cfg)
	if err != nil {
		return nil, err
	}

	stats, err := admissionStats(cfg, d)
	if err != nil {
		return nil, err
	}

	observer, err := attemptObserver(cfg, d, log)
	if err != nil {
		return nil, err
	}

	mode, err := dispatchinfra.ParsePayloadMode(cfg.UpstreamPayloadMode)
	if err != nil {
		return nil, err
	}

	gw.dispatcher = &application.Dispatcher{
		Settings:    dispatchinfra.NewEnvSettings(d.Viper),
		Caller:      dispatchinfra.NewGeminiCaller(cfg.UpstreamBaseURL, d.HTTP, mode),
		Cursor:      &dispatchinfra.MemoryCursor{},
		Observer:    observer,
		CallTimeout: cfg.UpstreamTimeout,
		Logger:      log.Named("dispatch"),
	}

	chat := http.Handler(&dispatch.Handler{
		Dispatcher: gw.dispatcher,
		Normalize:  cfg.NormalizeResponse,
		Logger:     log.Named("chat"),
	})
	chat = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		Logger:         log.Named("concurrency"),
	})(chat)
	if cfg.RateEnabled {
		chat = ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Stats:               stats,
			Strategy:            cfg.RateStrategy,
			KeyHeader:           cfg.RateKeyHeader,
			TrustXForwardedFor:  cfg.TrustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: cfg.AddRateLimitHeaders,
			Logger:              log.Named("admission"),
		})(chat)
	}

	r := chi.NewRouter()
	r.Use(logging.RequestID, logging.RequestLogger(log.Named("http")), middleware.Recoverer)
	r.MethodNotAllowed(dispatch.MethodNotAllowed)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	r.Method(http.MethodPost, cfg.ChatPath, chat)

	gw.handler = r
	return gw, nil
}

func (gw *gateway) admissionStore(cfg config.Config) (domain.LimiterStore, error) {
	if cfg.RateStrategy == config.StrategyTokenBucket {
		gw.tokenBucket = infra.NewStore(cfg.RateRPS, cfg.RateBurst)
		return gw.tokenBucket, nil
	}

	eviction, err := infra.ParseEviction(cfg.RateEviction)
	if err != nil {
		return nil, err
	}
	return infra.NewSlidingWindowStore(cfg.RateWindow, cfg.RateMaxRequests,
		infra.WithMaxClients(cfg.RateMaxClients),
		infra.WithEviction(eviction),
	)
}

func admissionStats(cfg config.Config, d deps) (domain.StatsStore, error) {
	prom, err := infra.NewPrometheusStatsStore(d.Registry)
	if err != nil {
		return nil, fmt.Errorf("admission metrics: %w", err)
	}
	stores := infra.MultiStatsStore{prom}
	if d.Redis != nil {
		stores = append(stores, infra.NewRedisStatsStore(d.Redis,
			infra.WithStatsPrefix(cfg.Stats.Prefix+":admission"),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	}
	return stores, nil
}

func attemptObserver(cfg config.Config, d deps, log *zap.Logger) (dispatchdomain.AttemptObserver, error) {
	prom, err := dispatchinfra.NewPrometheusObserver(d.Registry)
	if err != nil {
		return nil, fmt.Errorf("upstream metrics: %w", err)
	}
	observers := dispatchinfra.MultiObserver{prom, dispatchinfra.LogObserver{Logger: log.Named("attempt")}}
	if d.Redis != nil {
		observers = append(observers, dispatchinfra.NewRedisAttemptStats(d.Redis, cfg.Stats.Prefix+":upstream", log))
	}
	return observers, nil
}

// start inicia as rotinas de fundo; param quando ctx termina.
func (gw *gateway) start(ctx context.Context) {
	if gw.tokenBucket != nil {
		gw.tokenBucket.StartJanitor(ctx)
	}
}
