package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const saveKeyPrefix = "dungeonmind:save:"

// RedisStore implements Storage using Redis.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStore implements Storage interface.
var _ Storage = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(addr string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisStore{
		client: rdb,
		logger: logger,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	r.logger.Debug("Redis ping successful", "result", cmd.Val())
	return nil
}

func (r *RedisStore) PutSave(ctx context.Context, slot string, data []byte) error {
	cmd := r.client.Set(ctx, saveKeyPrefix+slot, data, 0)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Redis SET failed", "slot", slot, "error", err)
		return fmt.Errorf("redis set failed: %w", err)
	}
	r.logger.Debug("save stored", "slot", slot, "bytes", len(data))
	return nil
}

func (r *RedisStore) GetSave(ctx context.Context, slot string) ([]byte, error) {
	cmd := r.client.Get(ctx, saveKeyPrefix+slot)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			r.logger.Debug("save slot not found", "slot", slot)
			return nil, nil
		}
		r.logger.Error("Redis GET failed", "slot", slot, "error", err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return []byte(cmd.Val()), nil
}

func (r *RedisStore) DeleteSave(ctx context.Context, slot string) error {
	cmd := r.client.Del(ctx, saveKeyPrefix+slot)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Redis DEL failed", "slot", slot, "error", err)
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisStore) ListSaves(ctx context.Context) ([]string, error) {
	var slots []string
	iter := r.client.Scan(ctx, 0, saveKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		slots = append(slots, iter.Val()[len(saveKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	sort.Strings(slots)
	return slots, nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection blocks until Redis answers a ping or the context ends.
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	const maxRetries = 30
	const retryDelay = 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("redis not reachable after %d attempts", maxRetries)
}
