package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/blocke-ledger/internal/models"
)

// ErrCheckpointConflict is returned when another scanner advanced the
// checkpoint between read and write
var ErrCheckpointConflict = errors.New("checkpoint changed concurrently")

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// CheckpointRepository stores event scan checkpoints in Redis
type CheckpointRepository struct {
	client *redis.Client
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(cache *RedisCache) *CheckpointRepository {
	return &CheckpointRepository{client: cache.Client()}
}

func checkpointKey(contract, event string) string {
	return cacheKey(CacheKeyCheckpoint, contract, event)
}

// Get returns the checkpoint for a contract event, or nil when none exists
func (r *CheckpointRepository) Get(ctx context.Context, contract, event string) (*models.ScanCheckpoint, error) {
	return loadCheckpoint(ctx, r.client, checkpointKey(contract, event))
}

// CompareAndSwap stores next only if the stored checkpoint still equals prev.
// A nil prev requires that no checkpoint exists yet.
func (r *CheckpointRepository) CompareAndSwap(ctx context.Context, contract, event string, prev, next *models.ScanCheckpoint) error {
	key := checkpointKey(contract, event)

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := loadCheckpoint(ctx, tx, key)
		if err != nil {
			return err
		}
		if !sameCheckpoint(current, prev) {
			return ErrCheckpointConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrCheckpointConflict
	}
	return err
}

// Reset removes the checkpoint so the next scan starts over
func (r *CheckpointRepository) Reset(ctx context.Context, contract, event string) error {
	return r.client.Del(ctx, checkpointKey(contract, event)).Err()
}

// ResetScans removes the checkpoints of the given events and every cached
// total, so the next scan starts again from the start block
func ResetScans(ctx context.Context, checkpoints *CheckpointRepository, cache *CacheService, contract string, events ...string) error {
	for _, event := range events {
		if err := checkpoints.Reset(ctx, contract, event); err != nil {
			return fmt.Errorf("failed to reset %s checkpoint: %w", event, err)
		}
	}
	return cache.InvalidatePattern(ctx, cache.GenerateCacheKey(CacheKeyTotal, "*"))
}

func loadCheckpoint(ctx context.Context, c stringGetter, key string) (*models.ScanCheckpoint, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp models.ScanCheckpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func sameCheckpoint(a, b *models.ScanCheckpoint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.LastBlock == b.LastBlock && a.Total == b.Total
}
