package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example/meal-planner-api/app/config"
	"example/meal-planner-api/app/models"

	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "subscription_status:"

// StatusCache holds recent polling responses. A miss returns (nil, nil).
type StatusCache interface {
	Get(ctx context.Context, userID string) (*models.SubscriptionStatusView, error)
	Set(ctx context.Context, userID string, view models.SubscriptionStatusView) error
	Invalidate(ctx context.Context, userID string) error
}

type redisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusCache connects to Redis and verifies the connection.
func NewRedisStatusCache(ctx context.Context, cfg config.RedisConfig) (StatusCache, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.StatusTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisStatusCache{client: client, ttl: ttl}, client.Close, nil
}

func (r *redisStatusCache) Get(ctx context.Context, userID string) (*models.SubscriptionStatusView, error) {
	raw, err := r.client.Get(ctx, statusKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var view models.SubscriptionStatusView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode cached status: %w", err)
	}
	return &view, nil
}

func (r *redisStatusCache) Set(ctx context.Context, userID string, view models.SubscriptionStatusView) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statusKeyPrefix+userID, raw, r.ttl).Err()
}

func (r *redisStatusCache) Invalidate(ctx context.Context, userID string) error {
	return r.client.Del(ctx, statusKeyPrefix+userID).Err()
}

type noopStatusCache struct{}

func (noopStatusCache) Get(context.Context, string) (*models.SubscriptionStatusView, error) {
	return nil, nil
}

func (noopStatusCache) Set(context.Context, string, models.SubscriptionStatusView) error {
	return nil
}

func (noopStatusCache) Invalidate(context.Context, string) error {
	return nil
}
