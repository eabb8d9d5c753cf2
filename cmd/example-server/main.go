package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genai-gateway/dispatch"
	"genai-gateway/dispatch/application"
	dispatchinfra "genai-gateway/dispatch/infra"
	"genai-gateway/internal/logging"
	"genai-gateway/middleware/ratelimit"
	"genai-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

func main() {
	// Exemplo: embutindo admissão + despacho direto num ServeMux, sem cobra/chi.
	log, err := logging.New("debug", "console")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	store, err := infra.NewSlidingWindowStore(time.Minute, 5, infra.WithEviction(infra.EvictionLRU))
	if err != nil {
		log.Fatal("admission store", zap.Error(err))
	}
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	upstream := os.Getenv("UPSTREAM_BASE_URL")
	if upstream == "" {
		// servidor falso de teste-validacao/servidor-burrao
		upstream = "http://localhost:8081"
	}

	chat := http.Handler(&dispatch.Handler{
		Dispatcher: &application.Dispatcher{
			Settings: dispatchinfra.NewEnvSettings(nil),
			Caller:   dispatchinfra.NewGeminiCaller(upstream, nil, dispatchinfra.ModeContents),
			Cursor:   &dispatchinfra.MemoryCursor{},
			Observer: dispatchinfra.LogObserver{Logger: log},
			Logger:   log,
		},
		Normalize: true,
		Logger:    log,
	})
	chat = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50, Logger: log})(chat)
	chat = ratelimit.Middleware(ratelimit.Options{
		Store:               store,
		Stats:               stats,
		Strategy:            "sliding_window",
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
		Logger:              log,
	})(chat)

	mux := http.NewServeMux()
	mux.Handle("/api/chat", chat)
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Clients int `json:"clients"`
			infra.StatsSnapshot
		}{store.Len(), stats.Snapshot()})
	})

	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logging.RequestID(logging.RequestLogger(log)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr), zap.String("upstream", upstream))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
