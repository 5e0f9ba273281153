package domain

import "context"

// FeePayee receives the platform and staking shares of a settled market's
// fee. It may fail; callers divert the amount into the market's
// accumulated-fee ledger instead of propagating the failure.
type FeePayee interface {
	Receive(ctx context.Context, marketID string, amount int64) error
}

// Treasury moves value out of market escrow to an account's balance. It is
// the only outward transfer path used by claims, refunds and sweeps.
type Treasury interface {
	Credit(ctx context.Context, account string, amount int64) error
}
