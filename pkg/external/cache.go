package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medsafe-risk-server/internal/domain"
)

// CacheClient wraps Redis with cache-aside helpers for collaborator
// responses. DDI predictions and evidence paths are pure functions of
// the drug pair, so cached entries stay valid until the underlying
// models or graph are republished.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a cache client and verifies connectivity.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedEntry wraps a cached payload with its expiry metadata.
type cachedEntry struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// GetDDI retrieves a cached DDI prediction for a drug pair.
func (c *CacheClient) GetDDI(ctx context.Context, drugID1, drugID2 string) (*domain.DDIResult, bool, error) {
	var result domain.DDIResult
	found, err := c.get(ctx, ddiKey(drugID1, drugID2), &result)
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}

// SetDDI caches a DDI prediction for a drug pair.
func (c *CacheClient) SetDDI(ctx context.Context, drugID1, drugID2 string, result *domain.DDIResult, ttl time.Duration) error {
	return c.set(ctx, ddiKey(drugID1, drugID2), result, ttl)
}

// GetEvidencePaths retrieves cached evidence paths for a drug pair.
func (c *CacheClient) GetEvidencePaths(ctx context.Context, drugID1, drugID2 string) ([]domain.EvidencePath, bool, error) {
	var paths []domain.EvidencePath
	found, err := c.get(ctx, evidenceKey(drugID1, drugID2), &paths)
	if err != nil || !found {
		return nil, false, err
	}
	return paths, true, nil
}

// SetEvidencePaths caches evidence paths for a drug pair.
func (c *CacheClient) SetEvidencePaths(ctx context.Context, drugID1, drugID2 string, paths []domain.EvidencePath, ttl time.Duration) error {
	return c.set(ctx, evidenceKey(drugID1, drugID2), paths, ttl)
}

// get loads and decodes a cached entry; expired or corrupt entries are
// removed and treated as misses.
func (c *CacheClient) get(ctx context.Context, key string, out interface{}) (bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache: %w", err)
	}

	var entry cachedEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		c.redis.Del(ctx, key)
		return false, nil
	}

	if time.Now().After(entry.ExpiresAt) {
		c.redis.Del(ctx, key)
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, out); err != nil {
		c.redis.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// set encodes and stores a cache entry under the given TTL.
func (c *CacheClient) set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	entry := cachedEntry{
		Data:      raw,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return c.redis.Set(ctx, key, encoded, ttl).Err()
}

// Ping verifies cache connectivity, for health checks.
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// ddiKey builds a pair-order-independent cache key for DDI predictions.
func ddiKey(drugID1, drugID2 string) string {
	return "medsafe:ddi:" + pairHash(drugID1, drugID2)
}

// evidenceKey builds a pair-order-independent cache key for evidence paths.
func evidenceKey(drugID1, drugID2 string) string {
	return "medsafe:evidence:" + pairHash(drugID1, drugID2)
}

// pairHash hashes an unordered drug pair into a stable key component.
func pairHash(a, b string) string {
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "|" + b))
	return hex.EncodeToString(sum[:16])
}
