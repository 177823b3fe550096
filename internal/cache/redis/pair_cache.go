package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/btcsettle/btcsettle/internal/domain"
)

const pairTTL = 5 * time.Minute

// PairCache implements domain.PairCache using Redis hashes with JSON-
// serialized pair details and a secondary option-to-pair index.
//
// Key schema:
//
//	pair:{obligationID}        - hash with field "data" containing JSON
//	pair:option:{optionID}     - string value of the obligation ID
type PairCache struct {
	rdb *redis.Client
}

// NewPairCache creates a PairCache backed by the given Client.
func NewPairCache(c *Client) *PairCache {
	return &PairCache{rdb: c.Underlying()}
}

func pairKey(id string) string       { return "pair:" + id }
func pairOptionKey(id string) string { return "pair:option:" + id }

// Set stores pair details in the cache with a 5-minute TTL and indexes the
// option identity back to the obligation identity.
func (pc *PairCache) Set(ctx context.Context, details domain.PairDetails) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("redis: marshal pair %s: %w", details.ObligationID.Hex(), err)
	}

	key := pairKey(details.ObligationID.Hex())

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, pairTTL)
	pipe.Set(ctx, pairOptionKey(details.OptionID.Hex()), details.ObligationID.Hex(), pairTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pair %s: %w", details.ObligationID.Hex(), err)
	}
	return nil
}

// Get retrieves pair details by obligation identity. It returns
// domain.ErrPairNotFound when the key does not exist.
func (pc *PairCache) Get(ctx context.Context, obligationID string) (domain.PairDetails, error) {
	data, err := pc.rdb.HGet(ctx, pairKey(obligationID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PairDetails{}, domain.ErrPairNotFound
		}
		return domain.PairDetails{}, fmt.Errorf("redis: get pair %s: %w", obligationID, err)
	}

	var details domain.PairDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return domain.PairDetails{}, fmt.Errorf("redis: unmarshal pair %s: %w", obligationID, err)
	}
	return details, nil
}

// GetByOption looks pair details up by the option identity.
func (pc *PairCache) GetByOption(ctx context.Context, optionID string) (domain.PairDetails, error) {
	obligationID, err := pc.rdb.Get(ctx, pairOptionKey(optionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PairDetails{}, domain.ErrPairNotFound
		}
		return domain.PairDetails{}, fmt.Errorf("redis: get pair by option %s: %w", optionID, err)
	}

	return pc.Get(ctx, obligationID)
}

// Invalidate removes pair details and the option index entry from the cache.
func (pc *PairCache) Invalidate(ctx context.Context, obligationID string) error {
	details, err := pc.Get(ctx, obligationID)
	if err != nil && !errors.Is(err, domain.ErrPairNotFound) {
		return fmt.Errorf("redis: invalidate pair %s: %w", obligationID, err)
	}

	pipe := pc.rdb.TxPipeline()
	pipe.Del(ctx, pairKey(obligationID))
	if err == nil {
		pipe.Del(ctx, pairOptionKey(details.OptionID.Hex()))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate pair %s: %w", obligationID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PairCache = (*PairCache)(nil)
