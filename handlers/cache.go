package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"visitor-registry/monitoring"
	"visitor-registry/utils"
)

const cacheGenerationKey = "reports:generation"

// ReportCache keeps rendered report JSON in Redis. Keys embed a generation
// counter that every visit write increments, so a write makes all earlier
// entries unreachable.
type ReportCache struct {
	client utils.RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache returns nil when there is no client or the TTL is zero; a nil
// cache misses every lookup.
func NewReportCache(client utils.RedisClient, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &ReportCache{client: client, ttl: ttl, logger: logger}
}

func (rc *ReportCache) Invalidate(ctx context.Context) {
	if rc == nil {
		return
	}
	if _, err := rc.client.Incr(ctx, cacheGenerationKey); err != nil {
		rc.logger.Warn("failed to bump report cache generation", zap.Error(err))
	}
}

func (rc *ReportCache) key(ctx context.Context, name string) (string, error) {
	gen, err := rc.client.GetFromCache(ctx, cacheGenerationKey)
	if errors.Is(err, utils.ErrCacheMiss) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("reports:%s:%s", gen, name), nil
}

// Lookup resolves name against the current generation and returns the cached
// body when present. The returned key must be passed to Store, so a body built
// before a concurrent write is filed under the generation it was read from.
// An empty key means the cache is unavailable.
func (rc *ReportCache) Lookup(ctx context.Context, name string) (body []byte, key string, ok bool) {
	if rc == nil {
		return nil, "", false
	}
	key, err := rc.key(ctx, name)
	if err != nil {
		monitoring.ReportCache.WithLabelValues("error").Inc()
		rc.logger.Warn("report cache unavailable", zap.Error(err))
		return nil, "", false
	}
	cached, err := rc.client.GetFromCache(ctx, key)
	if err != nil {
		if errors.Is(err, utils.ErrCacheMiss) {
			monitoring.ReportCache.WithLabelValues("miss").Inc()
		} else {
			monitoring.ReportCache.WithLabelValues("error").Inc()
			rc.logger.Warn("failed to read report cache", zap.String("key", key), zap.Error(err))
		}
		return nil, key, false
	}
	monitoring.ReportCache.WithLabelValues("hit").Inc()
	return []byte(cached), key, true
}

// Store saves body under a key returned by Lookup.
func (rc *ReportCache) Store(ctx context.Context, key string, body []byte) {
	if rc == nil || key == "" {
		return
	}
	if err := rc.client.SetToCache(ctx, key, string(body), rc.ttl); err != nil {
		rc.logger.Warn("failed to write report cache", zap.String("key", key), zap.Error(err))
	}
}
