// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults come from New(ctx); Load layers a YAML file and env vars on top.
// - Validation failures wrap ErrInvalidConfig, source failures ErrLoadConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects the PostgreSQL store. Empty means in-memory.
	DatabaseURL string `koanf:"database_url"`

	// DatabaseMaxConns caps the pgx pool.
	DatabaseMaxConns int `koanf:"database_max_conns"`

	// DatabaseMigrate applies the embedded schema at startup.
	DatabaseMigrate bool `koanf:"database_migrate"`

	// RedisURL enables the skill catalog cache. Empty disables it.
	RedisURL string `koanf:"redis_url"`

	// SkillCacheTTLSeconds is the lifetime of cached catalog entries.
	SkillCacheTTLSeconds int `koanf:"skill_cache_ttl_seconds"`

	// SkillCacheBreakerFailures is the number of consecutive Redis failures
	// after which the cache is bypassed for a cool-down period.
	SkillCacheBreakerFailures int `koanf:"skill_cache_breaker_failures"`

	// FixturePath seeds the in-memory store from a YAML file.
	FixturePath string `koanf:"fixture_path"`

	// ScoringParallelism bounds concurrent per-candidate scoring.
	ScoringParallelism int `koanf:"scoring_parallelism"`

	// CallTimeoutMS bounds one recommendation call. Zero disables it.
	CallTimeoutMS int `koanf:"call_timeout_ms"`

	// DefaultLimit and DefaultMinScore apply when the query omits them.
	DefaultLimit    int     `koanf:"default_limit"`
	DefaultMinScore float64 `koanf:"default_min_score"`

	// MaxLimit caps ?limit on recommendation endpoints.
	MaxLimit int `koanf:"max_limit"`

	// RateLimitPerMinute caps recommendation calls per client IP. Zero disables it.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// CORSAllowedOrigins enables CORS for these origins. A comma separated
	// string is accepted from the environment.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// AuditSchedule is the cron spec of the skill consistency audit.
	// Empty disables the audit.
	AuditSchedule string `koanf:"audit_schedule"`

	// AuditWorkers is the number of concurrent provider checks.
	AuditWorkers int `koanf:"audit_workers"`

	// AuditQueueCapacity bounds provider checks waiting for a worker.
	AuditQueueCapacity int `koanf:"audit_queue_capacity"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		DatabaseMaxConns:          10,
		SkillCacheTTLSeconds:      300,
		SkillCacheBreakerFailures: 5,
		ScoringParallelism:        runtime.NumCPU(),
		CallTimeoutMS:             2000,
		DefaultLimit:              10,
		DefaultMinScore:           0.3,
		MaxLimit:                  100,
		RateLimitPerMinute:        600,
		AuditSchedule:             "@every 1h",
		AuditWorkers:              2,
		AuditQueueCapacity:        10000,
	}
}

// CallTimeout returns CallTimeoutMS as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

// SkillCacheTTL returns SkillCacheTTLSeconds as a duration.
func (c *Config) SkillCacheTTL() time.Duration {
	return time.Duration(c.SkillCacheTTLSeconds) * time.Second
}
