// Package cache holds a Redis read-through cache in front of the skill catalog.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/internal/domain/model"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

const (
	keyPrefix  = "tradelink:skill:"
	defaultTTL = 5 * time.Minute

	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second

	// missTimeout bounds a coalesced catalog read, which outlives the
	// caller that started it.
	missTimeout = 10 * time.Second
)

// Connect parses redisURL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrConnect, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnect, err)
	}
	return client, nil
}

// cachedSkill is the stored JSON form of a catalog entry.
type cachedSkill struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ServiceTypeID string `json:"serviceTypeId"`
}

// SkillCache wraps a catalog with Redis. Redis failures degrade to the
// underlying catalog; only catalog failures are returned. After repeated
// Redis failures a circuit breaker skips Redis until the cool-down ends.
type SkillCache struct {
	rdb    redis.Cmdable
	next   consistency.SkillCatalog
	ttl    time.Duration
	logger logger.Logger

	breakerFailures uint32
	breakerCooldown time.Duration
	breaker         *gobreaker.CircuitBreaker[[]interface{}]

	// misses coalesces concurrent catalog lookups for the same id set.
	misses singleflight.Group
}

// Option applies a configuration option to the SkillCache.
type Option func(*SkillCache)

// WithTTL sets the lifetime of cached entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *SkillCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *SkillCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBreaker opens the Redis circuit after failures consecutive errors and
// retries Redis after cooldown.
func WithBreaker(failures int, cooldown time.Duration) Option {
	return func(c *SkillCache) {
		if failures > 0 {
			c.breakerFailures = uint32(failures)
		}
		if cooldown > 0 {
			c.breakerCooldown = cooldown
		}
	}
}

// NewSkillCache returns a cache over next.
func NewSkillCache(rdb redis.Cmdable, next consistency.SkillCatalog, opts ...Option) *SkillCache {
	c := &SkillCache{
		rdb:             rdb,
		next:            next,
		ttl:             defaultTTL,
		logger:          logger.Discard(),
		breakerFailures: defaultBreakerFailures,
		breakerCooldown: defaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]interface{}](gobreaker.Settings{
		Name:        "skill-cache",
		MaxRequests: 1,
		Timeout:     c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "skill cache breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

// BreakerState reports the Redis circuit: "closed", "half-open" or "open".
func (c *SkillCache) BreakerState() string {
	return c.breaker.State().String()
}

// GetStats reports the cache settings and circuit state for /stats.
func (c *SkillCache) GetStats() map[string]interface{} {
	counts := c.breaker.Counts()
	return map[string]interface{}{
		"enabled":             true,
		"ttlSeconds":          int(c.ttl / time.Second),
		"breaker":             c.BreakerState(),
		"consecutiveFailures": counts.ConsecutiveFailures,
	}
}

// Lookup implements consistency.SkillCatalog.
func (c *SkillCache) Lookup(ctx context.Context, ids []string) (map[string]model.Skill, error) {
	out := make(map[string]model.Skill, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := c.fromRedis(ctx, ids, out)
	metrics.RecordSkillCacheLookup("hit", len(ids)-len(missing))
	if len(missing) == 0 {
		return out, nil
	}
	metrics.RecordSkillCacheLookup("miss", len(missing))

	flight := c.misses.DoChan(flightKey(missing), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), missTimeout)
		defer cancel()
		found, err := c.next.Lookup(fctx, missing)
		if err != nil {
			return nil, err
		}
		c.store(fctx, found)
		return found, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		metrics.RecordSkillCacheLookup("coalesced", len(missing))
	}
	// The map may be shared with other callers; only read it.
	for id, sk := range res.Val.(map[string]model.Skill) {
		out[id] = sk
	}
	return out, nil
}

func flightKey(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

// fromRedis fills out with cached entries and returns the ids it could not serve.
func (c *SkillCache) fromRedis(ctx context.Context, ids []string, out map[string]model.Skill) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	vals, err := c.breaker.Execute(func() ([]interface{}, error) {
		return c.rdb.MGet(ctx, keys...).Result()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordSkillCacheLookup("bypass", len(ids))
		return ids
	}
	if err != nil {
		metrics.RecordSkillCacheLookup("error", 1)
		c.logger.Warn(ctx, "skill cache read failed, using catalog", logger.Error(err))
		return ids
	}

	missing := make([]string, 0)
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var cs cachedSkill
		if err := json.Unmarshal([]byte(raw), &cs); err != nil {
			c.logger.Warn(ctx, "skill cache entry corrupt", logger.String("skillID", ids[i]), logger.Error(err))
			missing = append(missing, ids[i])
			continue
		}
		out[ids[i]] = model.Skill{ID: cs.ID, Name: cs.Name, ServiceTypeID: cs.ServiceTypeID}
	}
	return missing
}

func (c *SkillCache) store(ctx context.Context, found map[string]model.Skill) {
	if len(found) == 0 {
		return
	}
	_, err := c.breaker.Execute(func() ([]interface{}, error) {
		_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for id, sk := range found {
				raw, err := json.Marshal(cachedSkill{ID: sk.ID, Name: sk.Name, ServiceTypeID: sk.ServiceTypeID})
				if err != nil {
					return err
				}
				pipe.Set(ctx, keyPrefix+id, raw, c.ttl)
			}
			return nil
		})
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return
	}
	if err != nil {
		c.logger.Warn(ctx, "skill cache write failed", logger.Int("entries", len(found)), logger.Error(err))
	}
}

var _ consistency.SkillCatalog = (*SkillCache)(nil)
