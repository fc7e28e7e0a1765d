// Package db provides the Redis client backing the submission poll cache.
package db

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"judge-core/internal/logging"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults for Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     20,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisConfigFromEnv builds a RedisConfig from the process environment.
func RedisConfigFromEnv() *RedisConfig {
	config := DefaultRedisConfig()

	if url := os.Getenv("JUDGE_REDIS_URL"); url != "" {
		config.URL = url
	}
	if host := os.Getenv("JUDGE_REDIS_HOST"); host != "" {
		config.Host = host
	}
	if port := os.Getenv("JUDGE_REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if password := os.Getenv("JUDGE_REDIS_PASSWORD"); password != "" {
		config.Password = password
	}
	if d := os.Getenv("JUDGE_REDIS_DB"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil {
			config.DB = parsed
		}
	}

	return config
}

// RedisClient wraps the go-redis client with a background health check and
// the handful of convenience methods the submission cache needs.
type RedisClient struct {
	client      *redis.Client
	healthCheck chan struct{}
}

// NewRedisClient dials Redis and starts the health-check loop.
func NewRedisClient(config *RedisConfig) (*RedisClient, error) {
	if config == nil {
		config = RedisConfigFromEnv()
	}

	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	if config.URL != "" {
		parsed, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}

	rc := &RedisClient{
		client:      redis.NewClient(opts),
		healthCheck: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	go rc.runHealthCheck()
	logging.L().Info("redis client connected", zap.String("addr", opts.Addr))
	return rc, nil
}

func (rc *RedisClient) runHealthCheck() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := rc.client.Ping(ctx).Err(); err != nil {
				logging.L().Warn("redis health check failed", zap.Error(err))
			}
			cancel()
		case <-rc.healthCheck:
			return
		}
	}
}

// Ping tests the Redis connection.
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get retrieves a value from Redis.
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return rc.client.Get(ctx, key).Result()
}

// Set stores a value in Redis with a TTL.
func (rc *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// Del deletes keys from Redis.
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// Close stops the health-check loop and closes the connection.
func (rc *RedisClient) Close() error {
	close(rc.healthCheck)
	return rc.client.Close()
}

// IsNotFound reports whether err is go-redis's cache-miss sentinel, so
// callers don't need to import go-redis directly.
func IsNotFound(err error) bool {
	return err == redis.Nil
}

var globalRedisClient *RedisClient

// InitGlobalRedis initializes the process-wide Redis client.
func InitGlobalRedis(config *RedisConfig) error {
	client, err := NewRedisClient(config)
	if err != nil {
		return err
	}
	globalRedisClient = client
	return nil
}

// GetGlobalRedis returns the process-wide Redis client, or nil if it was
// never initialized (the submission cache treats nil as "cache disabled").
func GetGlobalRedis() *RedisClient {
	return globalRedisClient
}

// CloseGlobalRedis closes the process-wide Redis client, if any.
func CloseGlobalRedis() error {
	if globalRedisClient != nil {
		return globalRedisClient.Close()
	}
	return nil
}
