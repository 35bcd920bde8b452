package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

// RedisSnapshotRepository stores the snapshot under a single Redis key without expiry.
type RedisSnapshotRepository struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisSnapshotRepository constructs a Redis-backed repository.
func NewRedisSnapshotRepository(client *redis.Client, key string, logger *zap.Logger) *RedisSnapshotRepository {
	if key == "" {
		key = "checkin:state"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSnapshotRepository{client: client, key: key, logger: logger}
}

// Driver names the backend.
func (r *RedisSnapshotRepository) Driver() string { return "redis" }

// Load fetches and decodes the snapshot.
func (r *RedisSnapshotRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	if r.client == nil {
		return nil, appErrors.ErrSnapshotNotFound
	}

	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decodeSnapshot(raw)
}

// Save encodes and stores the snapshot.
func (r *RedisSnapshotRepository) Save(ctx context.Context, snap models.Snapshot) error {
	if r.client == nil {
		return nil
	}

	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Clear deletes the snapshot key.
func (r *RedisSnapshotRepository) Clear(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", r.key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisSnapshotRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
