package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 2 * time.Second

// Redis implements Cache over a shared Redis instance. Every call carries
// its own timeout so a cache outage surfaces as ErrUnavailable instead of
// a hung login request.
type Redis struct {
	client    *redis.Client
	opTimeout time.Duration
}

// RedisConfig mirrors the connection settings the deployment provides.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to the configured instance and verifies it responds.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping redis %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, opTimeout: defaultOpTimeout}, nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapUnavailable(err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) GetDel(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	val, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapUnavailable(err)
	}
	return val, true, nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	val, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return val, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapUnavailable(err)
	}
	return n > 0, nil
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

var _ Cache = (*Redis)(nil)
