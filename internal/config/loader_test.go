package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/tradelink/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.AuditSchedule, convey.ShouldEqual, "@every 1h")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TRADELINK_ADDR", ":8080")
			_ = os.Setenv("TRADELINK_DATABASE_URL", "postgres://localhost/tradelink")
			_ = os.Setenv("TRADELINK_DEFAULT_LIMIT", "25")
			_ = os.Setenv("TRADELINK_DEFAULT_MIN_SCORE", "0.5")
			_ = os.Setenv("TRADELINK_LOG_FORMAT", "json")
			_ = os.Setenv("TRADELINK_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://localhost/tradelink")
				convey.So(cfg.DefaultLimit, convey.ShouldEqual, 25)
				convey.So(cfg.DefaultMinScore, convey.ShouldEqual, 0.5)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
# seed for local runs
addr: ":9090"
redis_url: "redis://localhost:6379/0"
skill_cache_ttl_seconds: 60
fixture_path: ./testdata/seed.yaml
audit_schedule: "*/5 * * * *"
rate_limit_per_minute: 0
cors_allowed_origins:
  - https://app.example
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TRADELINK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RedisURL, convey.ShouldEqual, "redis://localhost:6379/0")
				convey.So(cfg.SkillCacheTTLSeconds, convey.ShouldEqual, 60)
				convey.So(cfg.FixturePath, convey.ShouldEqual, "./testdata/seed.yaml")
				convey.So(cfg.AuditSchedule, convey.ShouldEqual, "*/5 * * * *")
				convey.So(cfg.RateLimitPerMinute, convey.ShouldEqual, 0)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://app.example"})
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nmax_limit: 50\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TRADELINK_CONFIG", tmpFile)
			_ = os.Setenv("TRADELINK_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env should win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.MaxLimit, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("TRADELINK_CONFIG", "/nonexistent/tradelink.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should report a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When values fail validation", func() {
			cases := map[string]string{
				"TRADELINK_ADDR":                         "",
				"TRADELINK_DEFAULT_MIN_SCORE":            "1.5",
				"TRADELINK_DEFAULT_LIMIT":                "500",
				"TRADELINK_LOG_FORMAT":                   "xml",
				"TRADELINK_CALL_TIMEOUT_MS":              "-1",
				"TRADELINK_AUDIT_WORKERS":                "0",
				"TRADELINK_RATE_LIMIT_PER_MINUTE":        "-1",
				"TRADELINK_SKILL_CACHE_BREAKER_FAILURES": "0",
			}
			for key, val := range cases {
				clearConfigEnvVars()
				_ = os.Setenv(key, val)
				cfg, err := config.Load(ctx)
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
			clearConfigEnvVars()
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"TRADELINK_CONFIG",
		"TRADELINK_ADDR",
		"TRADELINK_DATABASE_URL",
		"TRADELINK_DEFAULT_LIMIT",
		"TRADELINK_DEFAULT_MIN_SCORE",
		"TRADELINK_LOG_FORMAT",
		"TRADELINK_CALL_TIMEOUT_MS",
		"TRADELINK_AUDIT_WORKERS",
		"TRADELINK_RATE_LIMIT_PER_MINUTE",
		"TRADELINK_SKILL_CACHE_BREAKER_FAILURES",
		"TRADELINK_CORS_ALLOWED_ORIGINS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tradelink-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
