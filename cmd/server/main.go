package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/tradelink/internal/adapters/cache"
	"github.com/okian/tradelink/internal/adapters/http/api"
	"github.com/okian/tradelink/internal/adapters/mq/queue"
	"github.com/okian/tradelink/internal/adapters/mq/worker"
	"github.com/okian/tradelink/internal/adapters/repository"
	app "github.com/okian/tradelink/internal/app"
	"github.com/okian/tradelink/internal/audit"
	"github.com/okian/tradelink/internal/config"
	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/internal/domain/dedupe"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	catalog, cacheStats, closeCatalog := skillCatalog(ctx, cfg, store, log)
	defer closeCatalog()

	svc := app.New(store,
		app.WithLogger(log.Named("recommend")),
		app.WithParallelism(cfg.ScoringParallelism),
		app.WithCallTimeout(cfg.CallTimeout()),
		app.WithSkillCatalog(catalog),
	)

	stopAudit, auditStats, err := startAudit(ctx, cfg, store, svc, log)
	if err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)

	srv := newHTTPServer(cfg, svc, log,
		api.WithStatsSection("audit", auditStats),
		api.WithStatsSection("skillCache", cacheStats),
	)
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		stop()
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	stopAudit(shutdownCtx)

	log.Info(ctx, "server stopped")
	return nil
}

// openStore returns PostgreSQL when a database URL is configured, otherwise
// an in-memory store seeded from the optional fixture.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if cfg.DatabaseURL != "" {
		pg, err := repository.OpenPostgres(ctx, cfg.DatabaseURL,
			repository.WithMaxConns(cfg.DatabaseMaxConns),
			repository.WithMigrate(cfg.DatabaseMigrate),
			repository.WithLogger(log.Named("postgres")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		log.Info(ctx, "using postgres store", logger.Int("max_conns", cfg.DatabaseMaxConns))
		return pg, nil
	}

	mem := repository.NewMemoryStore()
	if cfg.FixturePath != "" {
		if err := repository.LoadFixture(mem, cfg.FixturePath, time.Now()); err != nil {
			return nil, err
		}
		log.Info(ctx, "seeded memory store", logger.String("fixture", cfg.FixturePath))
	} else {
		log.Warn(ctx, "no database_url or fixture_path; serving an empty memory store")
	}
	return mem, nil
}

// skillCatalog puts the Redis cache in front of the store's catalog when
// redis_url is set. An unreachable Redis is logged and skipped.
func skillCatalog(ctx context.Context, cfg *config.Config, store repository.Store, log logger.Logger) (consistency.SkillCatalog, api.StatsProvider, func()) {
	disabled := api.StatsFunc(func() map[string]interface{} {
		return map[string]interface{}{"enabled": false}
	})
	if cfg.RedisURL == "" {
		return store, disabled, func() {}
	}
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn(ctx, "skill cache disabled", logger.Error(err))
		return store, disabled, func() {}
	}
	c := cache.NewSkillCache(rdb, store,
		cache.WithTTL(cfg.SkillCacheTTL()),
		cache.WithBreaker(cfg.SkillCacheBreakerFailures, 0),
		cache.WithLogger(log.Named("skill-cache")),
	)
	log.Info(ctx, "skill cache enabled", logger.Duration("ttl", cfg.SkillCacheTTL()))
	return c, c, func() {
		if err := rdb.Close(); err != nil {
			log.Error(ctx, "redis close failed", logger.Error(err))
		}
	}
}

// startAudit wires the scheduler, queue and worker pool. An empty schedule
// disables the audit. The returned func stops everything it started.
func startAudit(ctx context.Context, cfg *config.Config, store repository.SkillStore, checker worker.Checker, log logger.Logger) (func(context.Context), api.StatsProvider, error) {
	if cfg.AuditSchedule == "" {
		log.Info(ctx, "consistency audit disabled")
		disabled := api.StatsFunc(func() map[string]interface{} {
			return map[string]interface{}{"enabled": false}
		})
		return func(context.Context) {}, disabled, nil
	}

	q := queue.NewInMemoryQueue(
		queue.WithCapacity(cfg.AuditQueueCapacity),
		queue.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.AuditQueueCapacity))),
	)
	sched, err := audit.New(cfg.AuditSchedule, store, q,
		audit.WithLogger(log.Named("audit")),
		audit.WithRunOnStart(true),
	)
	if err != nil {
		return nil, nil, err
	}
	pool := worker.NewPool(cfg.AuditWorkers, q, checker, worker.WithLogger(log))
	pool.Start(ctx)
	if err := sched.Start(ctx); err != nil {
		_ = pool.Shutdown(ctx)
		return nil, nil, err
	}

	stats := api.StatsFunc(func() map[string]interface{} {
		last := sched.Last()
		return map[string]interface{}{
			"enabled":      true,
			"schedule":     cfg.AuditSchedule,
			"workers":      pool.Size(),
			"processed":    pool.Processed(),
			"queueLength":  q.Len(context.Background()),
			"lastRunID":    last.RunID,
			"lastQueued":   last.Queued,
			"lastPending":  last.Pending,
			"lastRejected": last.Rejected,
		}
	})

	return func(stopCtx context.Context) {
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn(stopCtx, "audit scheduler stop", logger.Error(err))
		}
		if err := pool.Shutdown(stopCtx); err != nil {
			log.Warn(stopCtx, "audit pool shutdown", logger.Error(err))
		}
	}, stats, nil
}

// newHTTPServer builds the API from cfg; extra options such as /stats
// sections are applied last.
func newHTTPServer(cfg *config.Config, svc api.Dependencies, log logger.Logger, extra ...api.Option) *http.Server {
	opts := []api.Option{
		api.WithLogger(log.Named("http")),
		api.WithDefaults(cfg.DefaultLimit, cfg.DefaultMinScore, cfg.MaxLimit),
		api.WithCORS(cfg.CORSAllowedOrigins),
		api.WithRateLimit(cfg.RateLimitPerMinute),
	}
	apiServer := api.NewServer(svc, append(opts, extra...)...)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Routes(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
