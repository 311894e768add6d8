package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRADELINK_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if TRADELINK_CONFIG is set
//  3. env (prefix TRADELINK_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TRADELINK_DATABASE_URL -> database_url; underscores are kept to match
	// the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf(&cfg)); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unmarshalConf extends koanf's default decoder with comma splitting, so a
// list key such as cors_allowed_origins can come from a single env var.
func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           out,
			WeaklyTypedInput: true,
		},
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxLimit <= 0:
		return fmt.Errorf("%w: max_limit must be positive", ErrInvalidConfig)
	case c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxLimit:
		return fmt.Errorf("%w: default_limit must be in [1, max_limit]", ErrInvalidConfig)
	case c.DefaultMinScore < 0 || c.DefaultMinScore > 1:
		return fmt.Errorf("%w: default_min_score must be in [0, 1]", ErrInvalidConfig)
	case c.ScoringParallelism <= 0:
		return fmt.Errorf("%w: scoring_parallelism must be positive", ErrInvalidConfig)
	case c.CallTimeoutMS < 0:
		return fmt.Errorf("%w: call_timeout_ms must not be negative", ErrInvalidConfig)
	case c.SkillCacheTTLSeconds <= 0:
		return fmt.Errorf("%w: skill_cache_ttl_seconds must be positive", ErrInvalidConfig)
	case c.SkillCacheBreakerFailures <= 0:
		return fmt.Errorf("%w: skill_cache_breaker_failures must be positive", ErrInvalidConfig)
	case c.RateLimitPerMinute < 0:
		return fmt.Errorf("%w: rate_limit_per_minute must not be negative", ErrInvalidConfig)
	case c.DatabaseMaxConns <= 0:
		return fmt.Errorf("%w: database_max_conns must be positive", ErrInvalidConfig)
	case c.AuditWorkers <= 0:
		return fmt.Errorf("%w: audit_workers must be positive", ErrInvalidConfig)
	case c.AuditQueueCapacity <= 0:
		return fmt.Errorf("%w: audit_queue_capacity must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
