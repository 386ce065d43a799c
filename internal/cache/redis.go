package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/config"
)

// ResultCache caches serialized merge results in Redis, keyed by a
// digest of the request body. The merge is deterministic, so equal
// bodies always produce byte-equal results.
type ResultCache struct {
	client *redis.Client
	config *config.CacheConfig
	logger *zap.Logger
	stats  *cacheStats
}

type cacheStats struct {
	hits   int64
	misses int64
}

// New creates a new Redis-backed result cache
func New(cfg *config.CacheConfig, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	cache := &ResultCache{
		client: client,
		config: cfg,
		logger: logger,
		stats:  &cacheStats{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized successfully",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return cache, nil
}

// ping tests the Redis connection
func (rc *ResultCache) ping(ctx context.Context) error {
	_, err := rc.client.Ping(ctx).Result()
	return err
}

// Get looks up a cached merge result for the given request body.
// A nil result with nil error means a miss.
func (rc *ResultCache) Get(ctx context.Context, body []byte) (json.RawMessage, error) {
	key := rc.bodyKey(body)

	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&rc.stats.misses, 1)
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, nil
	} else if err != nil {
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, nil
	}

	if !json.Valid([]byte(data)) {
		rc.logger.Error("Corrupt cache entry, deleting", zap.String("key", key))
		rc.client.Del(ctx, key)
		atomic.AddInt64(&rc.stats.misses, 1)
		return nil, nil
	}

	atomic.AddInt64(&rc.stats.hits, 1)
	rc.logger.Debug("Cache hit", zap.String("key", key))
	return json.RawMessage(data), nil
}

// Set stores a merge result for the given request body
func (rc *ResultCache) Set(ctx context.Context, body []byte, result json.RawMessage) error {
	key := rc.bodyKey(body)

	if err := rc.client.Set(ctx, key, []byte(result), rc.config.DefaultTTL).Err(); err != nil {
		rc.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}

	rc.logger.Debug("Result cached successfully",
		zap.String("key", key),
		zap.Int("result_bytes", len(result)))

	return nil
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := rc.client.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   atomic.LoadInt64(&rc.stats.hits),
		Misses: atomic.LoadInt64(&rc.stats.misses),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "used_memory:") {
			if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != "" {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	keys, err := rc.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results
func (rc *ResultCache) Clear(ctx context.Context) error {
	pattern := rc.config.KeyPrefix + ":*"

	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			rc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// bodyKey creates a cache key from a request body digest
func (rc *ResultCache) bodyKey(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s:annot:%s", rc.config.KeyPrefix, hex.EncodeToString(sum[:]))
}

// maskRedisURL masks credentials in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
