package domain

import (
	"context"
	"time"
)

// OddsCache provides fast access to the latest implied odds per market.
type OddsCache interface {
	SetOdds(ctx context.Context, marketID string, odds OddsPair, ts time.Time) error
	GetOdds(ctx context.Context, marketID string) (OddsPair, time.Time, error)
}

// MarketCache provides fast market snapshot lookups for read endpoints.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking for multi-instance deployments.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus publishes settlement events for the WebSocket hub and any
// external indexer. Delivery is append-only; the core never depends on who
// listens.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
