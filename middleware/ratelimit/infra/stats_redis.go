package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genai-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega decisões de admissão em hashes no Redis, para somar
// as instâncias. O limite em si continua local a cada uma.
//
// Layout (prefix padrão "genai:admission"):
//
//	<prefix>:total                 allowed / denied
//	<prefix>:minute:<yyyymmddhhmm> allowed / denied (expira em ttl)
//	<prefix>:strategy              <strategy>:allowed / <strategy>:denied
//	<prefix>:route                 "<METHOD> <path>:allowed" ...
//	<prefix>:key:<client>          só com trackKeys (expira em ttl)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix    string
	ttl       time.Duration
	bucket    string // "minute" (padrão) ou "none"
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "genai:admission",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// increment é um HINCRBY, com EXPIRE opcional na mesma chave.
type increment struct {
	key    string
	field  string
	expire bool
}

// increments monta as operações de um evento, sem tocar no Redis.
func (s *RedisStatsStore) increments(ev domain.StatsEvent) []increment {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	ops := []increment{{key: s.prefix + ":total", field: outcome}}
	if s.bucket == "minute" {
		ops = append(ops, increment{
			key:    s.prefix + ":minute:" + at.UTC().Format("200601021504"),
			field:  outcome,
			expire: true,
		})
	}
	if ev.Strategy != "" {
		ops = append(ops, increment{key: s.prefix + ":strategy", field: ev.Strategy + ":" + outcome})
	}
	if route := strings.TrimSpace(ev.Method + " " + ev.Path); route != "" {
		ops = append(ops, increment{key: s.prefix + ":route", field: route + ":" + outcome})
	}
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		ops = append(ops, increment{key: s.prefix + ":key:" + k, field: outcome, expire: true})
	}
	return ops
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, op := range s.increments(ev) {
		pipe.HIncrBy(ctx, op.key, op.field, 1)
		if op.expire && s.ttl > 0 {
			pipe.Expire(ctx, op.key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis admission stats: %w", err)
	}
	return nil
}
