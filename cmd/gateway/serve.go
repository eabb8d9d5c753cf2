package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"genai-gateway/internal/config"
	"genai-gateway/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	cmd.Flags().String("listen", "", "listen address (overrides LISTEN_ADDR)")
	_ = v.BindPFlag("LISTEN_ADDR", cmd.Flags().Lookup("listen"))
	return cmd
}

func runServe(parent context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var rdb redis.Cmdable
	if cfg.Stats.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = client.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := client.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}
		rdb = client
	}

	gw, err := newGateway(cfg, deps{
		Viper:    v,
		Logger:   log,
		Registry: reg,
		Redis:    rdb,
		HTTP:     &http.Client{Timeout: cfg.UpstreamTimeout + 5*time.Second},
	})
	if err != nil {
		return err
	}
	gw.start(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// o despacho pode somar até 5 chamadas ao upstream
		WriteTimeout: 5*cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("chat_path", cfg.ChatPath),
		zap.String("upstream", cfg.UpstreamBaseURL),
		zap.String("payload_mode", cfg.UpstreamPayloadMode))
	log.Info("admission",
		zap.Bool("enabled", cfg.RateEnabled),
		zap.String("strategy", cfg.RateStrategy),
		zap.Duration("window", cfg.RateWindow),
		zap.Int("max_requests", cfg.RateMaxRequests),
		zap.Int("max_clients", cfg.RateMaxClients),
		zap.String("eviction", cfg.RateEviction),
		zap.Bool("trust_xff", cfg.TrustXFF))
	log.Info("concurrency", zap.Int("max", cfg.ConcurrencyMax), zap.Duration("acquire_timeout", cfg.ConcurrencyTimeout))
	log.Info("stats", zap.Bool("redis", cfg.Stats.Enabled), zap.String("redis_addr", cfg.Stats.RedisAddr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("gateway stopped")
	return nil
}
