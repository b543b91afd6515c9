package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	keyPrefix  = "handicapper:lines:"
	maxRetries = 3
)

// LineCache keeps the newest market snapshot per game in Redis, encoded with
// msgpack. It implements contracts.LineSource.
type LineCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLineCache creates a cache whose entries expire after ttl (0 = never)
func NewLineCache(client *redis.Client, ttl time.Duration) *LineCache {
	return &LineCache{
		client: client,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding a game's latest snapshot
func Key(gameID string) string {
	return keyPrefix + gameID
}

// Encode serializes a snapshot
func Encode(line models.MarketLine) ([]byte, error) {
	data, err := msgpack.Marshal(line)
	if err != nil {
		return nil, fmt.Errorf("failed to encode line: %w", err)
	}
	return data, nil
}

// Decode deserializes a snapshot written by Encode
func Decode(data []byte) (models.MarketLine, error) {
	var line models.MarketLine
	if err := msgpack.Unmarshal(data, &line); err != nil {
		return models.MarketLine{}, fmt.Errorf("failed to decode line: %w", err)
	}
	return line, nil
}

// Put stores line unless a snapshot captured later is already cached.
// It reports whether the cache was updated.
func (c *LineCache) Put(ctx context.Context, line models.MarketLine) (bool, error) {
	if line.GameID == "" {
		return false, fmt.Errorf("line has no game id")
	}

	key := Key(line.GameID)
	data, err := Encode(line)
	if err != nil {
		return false, err
	}

	stored := false
	txn := func(tx *redis.Tx) error {
		stored = false

		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			existing, decodeErr := Decode(current)
			if decodeErr == nil && existing.CapturedAt.After(line.CapturedAt) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := c.client.Watch(ctx, txn, key)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("failed to cache line for %s: %w", line.GameID, err)
	}
	return false, fmt.Errorf("failed to cache line for %s: too much contention", line.GameID)
}

// LatestLine implements contracts.LineSource
func (c *LineCache) LatestLine(ctx context.Context, gameID string) (models.MarketLine, bool, error) {
	data, err := c.client.Get(ctx, Key(gameID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.MarketLine{}, false, nil
		}
		return models.MarketLine{}, false, fmt.Errorf("failed to read line for %s: %w", gameID, err)
	}

	line, err := Decode(data)
	if err != nil {
		return models.MarketLine{}, false, err
	}
	return line, true, nil
}
