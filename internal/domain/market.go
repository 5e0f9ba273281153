package domain

import "time"

// UnitsPerToken is the fixed-point scale for all monetary amounts. Amounts
// are carried as int64 micro-tokens so pool math stays in integer space.
const UnitsPerToken int64 = 1_000_000

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator int64 = 10_000

// MarketState is the lifecycle state of a market.
type MarketState string

const (
	MarketStateProposed  MarketState = "proposed"
	MarketStateApproved  MarketState = "approved"
	MarketStateActive    MarketState = "active"
	MarketStateResolving MarketState = "resolving"
	MarketStateDisputed  MarketState = "disputed"
	MarketStateFinalized MarketState = "finalized"
	MarketStateCancelled MarketState = "cancelled"
	MarketStateRejected  MarketState = "rejected"
)

// Terminal reports whether the state admits no further transitions other
// than claims and sweeps.
func (s MarketState) Terminal() bool {
	return s == MarketStateFinalized || s == MarketStateCancelled || s == MarketStateRejected
}

// Outcome identifies one of the two sides of a binary market.
type Outcome int

const (
	OutcomeNone Outcome = 0
	Outcome1    Outcome = 1
	Outcome2    Outcome = 2
)

// Opposite returns the other side of a binary outcome.
func (o Outcome) Opposite() Outcome {
	switch o {
	case Outcome1:
		return Outcome2
	case Outcome2:
		return Outcome1
	default:
		return OutcomeNone
	}
}

// Valid reports whether o names a real outcome.
func (o Outcome) Valid() bool {
	return o == Outcome1 || o == Outcome2
}

// Result is the final settlement result of a market.
type Result int

const (
	ResultUnresolved Result = 0
	ResultOutcome1   Result = 1
	ResultOutcome2   Result = 2
	ResultCancelled  Result = 3
)

// WinningOutcome maps a finalized result to the outcome that won, or
// OutcomeNone for unresolved/cancelled markets.
func (r Result) WinningOutcome() Outcome {
	switch r {
	case ResultOutcome1:
		return Outcome1
	case ResultOutcome2:
		return Outcome2
	default:
		return OutcomeNone
	}
}

// FeeConfig is the fee schedule frozen into a market at creation time.
// All rates are in basis points; amounts are micro-tokens.
type FeeConfig struct {
	TradingFeeBps   int64 // bond tier + voluntary tier, fixed at creation
	BondFeeBps      int64
	VoluntaryBps    int64
	VoluntaryAmount int64 // voluntary fee paid by the creator, net of tax
	PlatformBps     int64 // 3-way split of the collected fee
	CreatorBps      int64
	StakingBps      int64
}

// Market is the aggregate root for a binary parimutuel market. Pool totals
// are mutated only by bet admission, claims, refunds and the emergency
// sweep; Pool1 + Pool2 == TotalPool holds at all times.
type Market struct {
	ID       string
	Question string
	Outcome1 string
	Outcome2 string
	Creator  string
	State    MarketState
	Result   Result
	Fees     FeeConfig

	Bond         int64 // creator bond held in escrow
	BondRefunded bool

	Deadline time.Time

	Pool1     int64
	Pool2     int64
	TotalPool int64

	// Settlement bookkeeping, written at finalization.
	SettledFee      int64 // total fee deducted from the pool
	AccumulatedFees int64 // fee value the payee refused, pending admin sweep
	ClaimedTotal    int64 // sum of all payouts already transferred out

	// Resolution bookkeeping.
	ProposedOutcome Outcome
	Evidence        string
	ResolvedAt      *time.Time
	DisputeEndsAt   *time.Time
	FinalizedAt     *time.Time

	RejectReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pool returns the staked total for one outcome.
func (m *Market) Pool(o Outcome) int64 {
	switch o {
	case Outcome1:
		return m.Pool1
	case Outcome2:
		return m.Pool2
	default:
		return 0
	}
}

// AddToPool adds amount to the pool for the given outcome and to the total.
func (m *Market) AddToPool(o Outcome, amount int64) {
	switch o {
	case Outcome1:
		m.Pool1 += amount
	case Outcome2:
		m.Pool2 += amount
	}
	m.TotalPool += amount
}

// Decided reports whether the proposal phase is over (approved or rejected).
func (m *Market) Decided() bool {
	return m.State != MarketStateProposed
}

// Clone returns a deep copy of the market. Operations mutate a clone and
// swap it in only after persistence succeeds, so a failed operation leaves
// no partial state behind.
func (m *Market) Clone() *Market {
	cp := *m
	cp.ResolvedAt = cloneTime(m.ResolvedAt)
	cp.DisputeEndsAt = cloneTime(m.DisputeEndsAt)
	cp.FinalizedAt = cloneTime(m.FinalizedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// OddsPair is the implied odds for both outcomes, in basis points of net
// winnings per unit staked (the pool on the other side relative to yours).
type OddsPair struct {
	Outcome1Bps int64 `json:"outcome_1_bps"`
	Outcome2Bps int64 `json:"outcome_2_bps"`
}
