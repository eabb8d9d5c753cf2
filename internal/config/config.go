// Package config lê a configuração do gateway do ambiente, via viper.
//
// Chaves de API e modelo não ficam aqui: são lidos a cada requisição por
// dispatch/infra.EnvSettings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

type Config struct {
	ListenAddr string
	ChatPath   string

	RateEnabled         bool
	RateStrategy        string
	RateWindow          time.Duration
	RateMaxRequests     int
	RateMaxClients      int
	RateEviction        string
	RateRPS             float64
	RateBurst           int
	RateKeyHeader       string
	TrustXFF            bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	Stats StatsConfig

	UpstreamBaseURL     string
	UpstreamTimeout     time.Duration
	UpstreamPayloadMode string
	NormalizeResponse   bool

	LogLevel  string
	LogFormat string
}

// StatsConfig: agregação opcional das decisões e tentativas no Redis.
type StatsConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
	Bucket        string
	TrackKeys     bool
}

// SetDefaults registra os valores padrão no viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("CHAT_PATH", "/api/chat")

	v.SetDefault("RATE_ENABLED", true)
	v.SetDefault("RATE_STRATEGY", StrategySlidingWindow)
	v.SetDefault("RATE_WINDOW", time.Minute)
	v.SetDefault("RATE_MAX_REQUESTS", 5)
	v.SetDefault("RATE_MAX_CLIENTS", 5000)
	v.SetDefault("RATE_EVICTION", "reset")
	v.SetDefault("RATE_RPS", 10.0)
	v.SetDefault("RATE_KEY_HEADER", "")
	v.SetDefault("TRUST_XFF", true)
	v.SetDefault("RETRY_AFTER", time.Second)
	v.SetDefault("ADD_RATELIMIT_HEADERS", false)

	v.SetDefault("CONCURRENCY_MAX", 100)
	v.SetDefault("CONCURRENCY_TIMEOUT", time.Duration(0))

	v.SetDefault("RATE_STATS_ENABLED", false)
	v.SetDefault("RATE_STATS_REDIS_ADDR", "")
	v.SetDefault("RATE_STATS_REDIS_DB", 0)
	v.SetDefault("RATE_STATS_PREFIX", "genai")
	v.SetDefault("RATE_STATS_TTL", 24*time.Hour)
	v.SetDefault("RATE_STATS_BUCKET", "minute")
	v.SetDefault("RATE_STATS_TRACK_KEYS", false)

	v.SetDefault("UPSTREAM_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("UPSTREAM_TIMEOUT", 30*time.Second)
	v.SetDefault("UPSTREAM_PAYLOAD_MODE", "contents")
	v.SetDefault("NORMALIZE_RESPONSE", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load monta a Config a partir do viper (defaults + ambiente) e valida.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	SetDefaults(v)

	cfg := Config{
		ListenAddr: v.GetString("LISTEN_ADDR"),
		ChatPath:   v.GetString("CHAT_PATH"),

		RateEnabled:         v.GetBool("RATE_ENABLED"),
		RateStrategy:        strings.ToLower(strings.TrimSpace(v.GetString("RATE_STRATEGY"))),
		RateWindow:          v.GetDuration("RATE_WINDOW"),
		RateMaxRequests:     v.GetInt("RATE_MAX_REQUESTS"),
		RateMaxClients:      v.GetInt("RATE_MAX_CLIENTS"),
		RateEviction:        v.GetString("RATE_EVICTION"),
		RateRPS:             v.GetFloat64("RATE_RPS"),
		RateKeyHeader:       v.GetString("RATE_KEY_HEADER"),
		TrustXFF:            v.GetBool("TRUST_XFF"),
		RetryAfter:          v.GetDuration("RETRY_AFTER"),
		AddRateLimitHeaders: v.GetBool("ADD_RATELIMIT_HEADERS"),

		ConcurrencyMax:     v.GetInt("CONCURRENCY_MAX"),
		ConcurrencyTimeout: v.GetDuration("CONCURRENCY_TIMEOUT"),

		Stats: StatsConfig{
			Enabled:       v.GetBool("RATE_STATS_ENABLED"),
			RedisAddr:     v.GetString("RATE_STATS_REDIS_ADDR"),
			RedisPassword: v.GetString("RATE_STATS_REDIS_PASSWORD"),
			RedisDB:       v.GetInt("RATE_STATS_REDIS_DB"),
			Prefix:        v.GetString("RATE_STATS_PREFIX"),
			TTL:           v.GetDuration("RATE_STATS_TTL"),
			Bucket:        v.GetString("RATE_STATS_BUCKET"),
			TrackKeys:     v.GetBool("RATE_STATS_TRACK_KEYS"),
		},

		UpstreamBaseURL:     v.GetString("UPSTREAM_BASE_URL"),
		UpstreamTimeout:     v.GetDuration("UPSTREAM_TIMEOUT"),
		UpstreamPayloadMode: v.GetString("UPSTREAM_PAYLOAD_MODE"),
		NormalizeResponse:   v.GetBool("NORMALIZE_RESPONSE"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	// O burst permite uma rajada inicial. Com RPS muito baixo (ex: 0.02), o
	// padrão 20 dá a impressão de que o limiter não funciona.
	if v.IsSet("RATE_BURST") && v.GetString("RATE_BURST") != "" {
		cfg.RateBurst = v.GetInt("RATE_BURST")
	} else {
		cfg.RateBurst = 20
		if cfg.RateRPS > 0 && cfg.RateRPS < 1 {
			cfg.RateBurst = 1
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate devolve todos os problemas encontrados de uma vez.
func (c Config) Validate() error {
	var err error
	switch c.RateStrategy {
	case StrategySlidingWindow:
		if c.RateWindow <= 0 {
			err = multierr.Append(err, errors.New("RATE_WINDOW must be > 0"))
		}
		if c.RateMaxRequests <= 0 {
			err = multierr.Append(err, errors.New("RATE_MAX_REQUESTS must be > 0"))
		}
		if c.RateMaxClients <= 0 {
			err = multierr.Append(err, errors.New("RATE_MAX_CLIENTS must be > 0"))
		}
		switch strings.ToLower(strings.TrimSpace(c.RateEviction)) {
		case "", "reset", "lru":
		default:
			err = multierr.Append(err, fmt.Errorf("RATE_EVICTION must be reset or lru, got %q", c.RateEviction))
		}
	case StrategyTokenBucket:
		if c.RateRPS <= 0 {
			err = multierr.Append(err, errors.New("RATE_RPS must be > 0"))
		}
		if c.RateBurst <= 0 {
			err = multierr.Append(err, errors.New("RATE_BURST must be > 0"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("RATE_STRATEGY must be %q or %q, got %q",
			StrategySlidingWindow, StrategyTokenBucket, c.RateStrategy))
	}

	if c.ConcurrencyMax < 0 {
		err = multierr.Append(err, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		err = multierr.Append(err, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true"))
	}
	if c.UpstreamTimeout <= 0 {
		err = multierr.Append(err, errors.New("UPSTREAM_TIMEOUT must be > 0"))
	}
	if !strings.HasPrefix(c.ChatPath, "/") {
		err = multierr.Append(err, errors.New("CHAT_PATH must start with /"))
	}
	return err
}
