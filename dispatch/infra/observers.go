package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genai-gateway/dispatch/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PrometheusObserver conta tentativas por credencial (id, nunca a chave) e outcome.
type PrometheusObserver struct {
	attempts *prometheus.CounterVec
}

// NewPrometheusObserver registra genai_upstream_attempts_total no registerer.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genai",
		Subsystem: "upstream",
		Name:      "attempts_total",
		Help:      "Upstream attempts per credential and outcome.",
	}, []string{"key_id", "outcome"})

	if reg != nil {
		if err := reg.Register(attempts); err != nil {
			return nil, err
		}
	}
	return &PrometheusObserver{attempts: attempts}, nil
}

func (o *PrometheusObserver) ObserveAttempt(_ context.Context, rec domain.AttemptRecord) {
	o.attempts.WithLabelValues(rec.CredentialID, rec.Outcome.String()).Inc()
}

func (o *PrometheusObserver) Attempts() *prometheus.CounterVec { return o.attempts }

// RedisAttemptStats soma outcomes por credencial em hashes:
//
//	<prefix>:attempts         <key_id>:<outcome>
//	<prefix>:status:<key_id>  <status> (só respostas HTTP)
type RedisAttemptStats struct {
	rdb     redis.Cmdable
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisAttemptStats(rdb redis.Cmdable, prefix string, logger *zap.Logger) *RedisAttemptStats {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "genai:upstream"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisAttemptStats{rdb: rdb, prefix: prefix, timeout: 500 * time.Millisecond, logger: logger}
}

// Record grava a tentativa e devolve o erro do Redis.
func (s *RedisAttemptStats) Record(ctx context.Context, rec domain.AttemptRecord) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	// a requisição pode já ter sido cancelada; a estatística não depende dela
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":attempts", rec.CredentialID+":"+rec.Outcome.String(), 1)
	if rec.Status != 0 {
		pipe.HIncrBy(ctx, s.prefix+":status:"+rec.CredentialID, fmt.Sprintf("%d", rec.Status), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upstream stats: %w", err)
	}
	return nil
}

func (s *RedisAttemptStats) ObserveAttempt(ctx context.Context, rec domain.AttemptRecord) {
	if err := s.Record(ctx, rec); err != nil {
		s.logger.Warn("failed to record upstream attempt", zap.String("key_id", rec.CredentialID), zap.Error(err))
	}
}

// LogObserver escreve uma linha de debug por tentativa.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) ObserveAttempt(_ context.Context, rec domain.AttemptRecord) {
	if o.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("key_id", rec.CredentialID),
		zap.Int("key_index", rec.CredentialIndex),
		zap.Stringer("outcome", rec.Outcome),
	}
	if rec.Status != 0 {
		fields = append(fields, zap.Int("status", rec.Status))
	}
	if rec.Err != nil {
		fields = append(fields, zap.Error(rec.Err))
	}
	o.Logger.Debug("upstream attempt", fields...)
}

// MultiObserver repassa cada tentativa para todos os observadores.
type MultiObserver []domain.AttemptObserver

func (m MultiObserver) ObserveAttempt(ctx context.Context, rec domain.AttemptRecord) {
	for _, o := range m {
		if o != nil {
			o.ObserveAttempt(ctx, rec)
		}
	}
}
