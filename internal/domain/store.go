package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	State  MarketState
}

// MarketStore persists market aggregates.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	// ListSettledBefore returns finalized or rejected markets whose
	// finalization happened strictly before the cutoff (archival feed).
	ListSettledBefore(ctx context.Context, before time.Time) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// BetStore persists bet records.
type BetStore interface {
	Upsert(ctx context.Context, bet Bet) error
	Get(ctx context.Context, marketID, account string) (Bet, error)
	ListByMarket(ctx context.Context, marketID string) ([]Bet, error)
}

// DisputeStore persists dispute records.
type DisputeStore interface {
	Upsert(ctx context.Context, d Dispute) error
	GetActive(ctx context.Context, marketID string) (Dispute, error)
	ListByMarket(ctx context.Context, marketID string) ([]Dispute, error)
}

// BalanceStore is the internal balance book. Payouts, bond refunds and fee
// sweeps credit accounts here; an external cash-out service debits it.
type BalanceStore interface {
	Credit(ctx context.Context, account string, amount int64) error
	Get(ctx context.Context, account string) (int64, error)
}

// AuditEntry is a single append-only audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	MarketID  string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of state transitions and
// money movements.
type AuditStore interface {
	Log(ctx context.Context, event, marketID string, detail map[string]any) error
	List(ctx context.Context, marketID string, opts ListOpts) ([]AuditEntry, error)
}
