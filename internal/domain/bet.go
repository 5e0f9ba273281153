package domain

import "time"

// Bet is the single active stake record for an (account, market) pair.
// Repeat bets on the same outcome accumulate into the same record. The
// Claimed flag is write-once false→true.
type Bet struct {
	MarketID string
	Account  string
	Outcome  Outcome
	Amount   int64
	Claimed  bool

	// Unclaimed holds a payout whose outward transfer failed after the
	// claimed flag was set. It is retried explicitly, never re-entered.
	Unclaimed int64

	PlacedAt  time.Time
	ClaimedAt *time.Time
	UpdatedAt time.Time
}
