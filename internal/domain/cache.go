package domain

import (
	"context"
	"time"
)

// PairCache provides fast pair-detail lookups for the read model.
type PairCache interface {
	Set(ctx context.Context, details PairDetails) error
	Get(ctx context.Context, obligationID string) (PairDetails, error)
	Invalidate(ctx context.Context, obligationID string) error
}

// SignalBus provides pub/sub fan-out of settlement events to the websocket
// hub and any other listeners.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter limits request rates per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
