package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// OddsCache implements domain.OddsCache using Redis hashes.
// Each market's odds are stored as a hash at key "odds:{marketID}" with
// fields "o1", "o2" and "ts" (Unix nanosecond timestamp).
type OddsCache struct {
	rdb *redis.Client
}

// NewOddsCache creates an OddsCache backed by the given Client.
func NewOddsCache(c *Client) *OddsCache {
	return &OddsCache{rdb: c.Underlying()}
}

func oddsKey(marketID string) string {
	return "odds:" + marketID
}

// SetOdds stores the latest implied odds and timestamp for a market.
func (oc *OddsCache) SetOdds(ctx context.Context, marketID string, odds domain.OddsPair, ts time.Time) error {
	key := oddsKey(marketID)
	fields := map[string]interface{}{
		"o1": strconv.FormatInt(odds.Outcome1Bps, 10),
		"o2": strconv.FormatInt(odds.Outcome2Bps, 10),
		"ts": strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := oc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", marketID, err)
	}
	return nil
}

// GetOdds retrieves the latest implied odds and timestamp for a market.
// It returns domain.ErrNotFound when the key does not exist.
func (oc *OddsCache) GetOdds(ctx context.Context, marketID string) (domain.OddsPair, time.Time, error) {
	vals, err := oc.rdb.HGetAll(ctx, oddsKey(marketID)).Result()
	if err != nil {
		return domain.OddsPair{}, time.Time{}, fmt.Errorf("redis: get odds %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return domain.OddsPair{}, time.Time{}, domain.ErrNotFound
	}

	o1, err := fieldInt64(vals, "o1")
	if err != nil {
		return domain.OddsPair{}, time.Time{}, fmt.Errorf("redis: parse odds %s: %w", marketID, err)
	}
	o2, err := fieldInt64(vals, "o2")
	if err != nil {
		return domain.OddsPair{}, time.Time{}, fmt.Errorf("redis: parse odds %s: %w", marketID, err)
	}
	tsNano, err := fieldInt64(vals, "ts")
	if err != nil {
		return domain.OddsPair{}, time.Time{}, fmt.Errorf("redis: parse odds ts %s: %w", marketID, err)
	}

	return domain.OddsPair{Outcome1Bps: o1, Outcome2Bps: o2}, time.Unix(0, tsNano), nil
}

func fieldInt64(vals map[string]string, name string) (int64, error) {
	s, ok := vals[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return strconv.ParseInt(s, 10, 64)
}

// Compile-time interface check.
var _ domain.OddsCache = (*OddsCache)(nil)
