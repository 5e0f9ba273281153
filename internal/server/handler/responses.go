package handler

import (
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// The domain structs carry no JSON tags on purpose; the wire shapes below
// are the API contract and can evolve independently of the aggregates.

type marketResponse struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Outcome1 string `json:"outcome1"`
	Outcome2 string `json:"outcome2"`
	Creator  string `json:"creator"`
	State    string `json:"state"`
	Result   int    `json:"result"`

	Bond         int64 `json:"bond"`
	BondRefunded bool  `json:"bond_refunded"`

	Deadline time.Time `json:"deadline"`

	Pool1     int64 `json:"pool1"`
	Pool2     int64 `json:"pool2"`
	TotalPool int64 `json:"total_pool"`

	TradingFeeBps int64 `json:"trading_fee_bps"`
	PlatformBps   int64 `json:"platform_bps"`
	CreatorBps    int64 `json:"creator_bps"`
	StakingBps    int64 `json:"staking_bps"`

	SettledFee      int64 `json:"settled_fee"`
	AccumulatedFees int64 `json:"accumulated_fees"`
	ClaimedTotal    int64 `json:"claimed_total"`

	ProposedOutcome int        `json:"proposed_outcome,omitempty"`
	Evidence        string     `json:"evidence,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	DisputeEndsAt   *time.Time `json:"dispute_ends_at,omitempty"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
	RejectReason    string     `json:"reject_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMarketResponse(m domain.Market) marketResponse {
	return marketResponse{
		ID:              m.ID,
		Question:        m.Question,
		Outcome1:        m.Outcome1,
		Outcome2:        m.Outcome2,
		Creator:         m.Creator,
		State:           string(m.State),
		Result:          int(m.Result),
		Bond:            m.Bond,
		BondRefunded:    m.BondRefunded,
		Deadline:        m.Deadline,
		Pool1:           m.Pool1,
		Pool2:           m.Pool2,
		TotalPool:       m.TotalPool,
		TradingFeeBps:   m.Fees.TradingFeeBps,
		PlatformBps:     m.Fees.PlatformBps,
		CreatorBps:      m.Fees.CreatorBps,
		StakingBps:      m.Fees.StakingBps,
		SettledFee:      m.SettledFee,
		AccumulatedFees: m.AccumulatedFees,
		ClaimedTotal:    m.ClaimedTotal,
		ProposedOutcome: int(m.ProposedOutcome),
		Evidence:        m.Evidence,
		ResolvedAt:      m.ResolvedAt,
		DisputeEndsAt:   m.DisputeEndsAt,
		FinalizedAt:     m.FinalizedAt,
		RejectReason:    m.RejectReason,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toMarketResponses(ms []domain.Market) []marketResponse {
	out := make([]marketResponse, len(ms))
	for i, m := range ms {
		out[i] = toMarketResponse(m)
	}
	return out
}

type betResponse struct {
	MarketID  string     `json:"market_id"`
	Account   string     `json:"account"`
	Outcome   int        `json:"outcome"`
	Amount    int64      `json:"amount"`
	Claimed   bool       `json:"claimed"`
	Unclaimed int64      `json:"unclaimed,omitempty"`
	PlacedAt  time.Time  `json:"placed_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

func toBetResponse(b domain.Bet) betResponse {
	return betResponse{
		MarketID:  b.MarketID,
		Account:   b.Account,
		Outcome:   int(b.Outcome),
		Amount:    b.Amount,
		Claimed:   b.Claimed,
		Unclaimed: b.Unclaimed,
		PlacedAt:  b.PlacedAt,
		ClaimedAt: b.ClaimedAt,
	}
}

type disputeResponse struct {
	ID       string     `json:"id"`
	MarketID string     `json:"market_id"`
	Disputor string     `json:"disputor"`
	Bond     int64      `json:"bond"`
	Reason   string     `json:"reason"`
	Active   bool       `json:"active"`
	Upheld   *bool      `json:"upheld,omitempty"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func toDisputeResponse(d domain.Dispute) disputeResponse {
	return disputeResponse{
		ID:       d.ID,
		MarketID: d.MarketID,
		Disputor: d.Disputor,
		Bond:     d.Bond,
		Reason:   d.Reason,
		Active:   d.Active,
		Upheld:   d.Upheld,
		OpenedAt: d.OpenedAt,
		ClosedAt: d.ClosedAt,
	}
}

type oddsResponse struct {
	MarketID    string `json:"market_id"`
	Outcome1Bps int64  `json:"outcome1_bps"`
	Outcome2Bps int64  `json:"outcome2_bps"`
}

type amountResponse struct {
	Amount int64 `json:"amount"`
}
