package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const pageKeyPrefix = "xgform:page:"

// DefaultPageTTL stays under the hourly ingest schedule so each run refetches.
const DefaultPageTTL = 50 * time.Minute

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	PageTTL  time.Duration
}

// RedisCache caches raw upstream pages in Redis
type RedisCache struct {
	client  *redis.Client
	pageTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	ttl := cfg.PageTTL
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}

	log.Info().
		Str("addr", client.Options().Addr).
		Dur("page_ttl", ttl).
		Msg("Successfully connected to Redis")

	return &RedisCache{client: client, pageTTL: ttl}, nil
}

// GetPage returns the cached page for url; ok is false on a miss
func (r *RedisCache) GetPage(ctx context.Context, url string) ([]byte, bool, error) {
	body, err := r.client.Get(ctx, pageKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get page: %w", err)
	}
	return body, true, nil
}

// SetPage stores a page with the configured TTL
func (r *RedisCache) SetPage(ctx context.Context, url string, body []byte) error {
	if err := r.client.Set(ctx, pageKey(url), body, r.pageTTL).Err(); err != nil {
		return fmt.Errorf("failed to set page: %w", err)
	}
	return nil
}

// InvalidatePage removes a cached page
func (r *RedisCache) InvalidatePage(ctx context.Context, url string) error {
	if err := r.client.Del(ctx, pageKey(url)).Err(); err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return nil
}

// Health checks the Redis connection
func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// URLs are long, so keys carry a digest.
func pageKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return pageKeyPrefix + hex.EncodeToString(sum[:])
}
