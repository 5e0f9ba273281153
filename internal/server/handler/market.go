package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
	"github.com/0xBased-lang/kektech-backend/internal/settlement"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, req settlement.CreateMarketRequest) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	Odds(ctx context.Context, id string) (domain.OddsPair, error)
	Approve(ctx context.Context, marketID, admin string) error
	Reject(ctx context.Context, marketID, admin, reason string) error
	Activate(ctx context.Context, marketID, admin string) error
	RefundBond(ctx context.Context, marketID, caller, reason string) (int64, error)
	AdminCancel(ctx context.Context, marketID, admin, note string) error
}

// MarketHandler serves market lifecycle HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

type createMarketRequest struct {
	Question    string    `json:"question"`
	Outcome1    string    `json:"outcome1"`
	Outcome2    string    `json:"outcome2"`
	Deadline    time.Time `json:"deadline"`
	Bond        int64     `json:"bond"`
	Voluntary   int64     `json:"voluntary,omitempty"`
	PlatformBps int64     `json:"platform_bps"`
	CreatorBps  int64     `json:"creator_bps"`
	StakingBps  int64     `json:"staking_bps"`
}

// Create proposes a new market. The creator is taken from the X-Account
// header; the bond is escrowed immediately.
// POST /api/markets
func (h *MarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	creator := account(r)
	if creator == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), settlement.CreateMarketRequest{
		Creator:     creator,
		Question:    req.Question,
		Outcome1:    req.Outcome1,
		Outcome2:    req.Outcome2,
		Deadline:    req.Deadline,
		Bond:        req.Bond,
		Voluntary:   req.Voluntary,
		PlatformBps: req.PlatformBps,
		CreatorBps:  req.CreatorBps,
		StakingBps:  req.StakingBps,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMarketResponse(m))
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []marketResponse `json:"markets"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// List returns markets with pagination, optionally filtered by state.
// GET /api/markets?limit=50&offset=0&state=active
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: toMarketResponses(markets),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// Get returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

// Odds returns the implied parimutuel odds for both outcomes.
// GET /api/markets/{id}/odds
func (h *MarketHandler) Odds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	odds, err := h.markets.Odds(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, oddsResponse{
		MarketID:    id,
		Outcome1Bps: odds.Outcome1Bps,
		Outcome2Bps: odds.Outcome2Bps,
	})
}

// Approve moves a proposed market to APPROVED. Admin only.
// POST /api/markets/{id}/approve
func (h *MarketHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id, actor string) error {
		return h.markets.Approve(ctx, id, actor)
	})
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Reject rejects a proposed market and refunds the creator bond. Admin only.
// POST /api/markets/{id}/reject
func (h *MarketHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	h.transition(w, r, func(ctx context.Context, id, actor string) error {
		return h.markets.Reject(ctx, id, actor, req.Reason)
	})
}

// Activate opens an approved market for betting. Admin only.
// POST /api/markets/{id}/activate
func (h *MarketHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id, actor string) error {
		return h.markets.Activate(ctx, id, actor)
	})
}

// Cancel force-cancels a market so all stakes become refundable. Admin only.
// POST /api/markets/{id}/cancel
func (h *MarketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	h.transition(w, r, func(ctx context.Context, id, actor string) error {
		return h.markets.AdminCancel(ctx, id, actor, req.Reason)
	})
}

// RefundBond returns the escrowed creator bond once the market settles.
// POST /api/markets/{id}/bond/refund
func (h *MarketHandler) RefundBond(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	caller := account(r)
	if caller == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	amount, err := h.markets.RefundBond(r.Context(), id, caller, req.Reason)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, amountResponse{Amount: amount})
}

// transition runs an actor-gated lifecycle change and returns the updated
// market on success.
func (h *MarketHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actor string) error) {
	id := pathParam(r, "id")
	actor := account(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	if err := fn(r.Context(), id, actor); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}
