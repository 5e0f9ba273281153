package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
	"github.com/0xBased-lang/kektech-backend/internal/settlement"
)

// BetService defines the pool operations the bet handler requires.
type BetService interface {
	PlaceBet(ctx context.Context, marketID, account string, outcome domain.Outcome, amount int64, minAcceptableOddsBps int64, txDeadline time.Time) (settlement.PlaceBetResult, error)
	GetBet(ctx context.Context, marketID, account string) (domain.Bet, error)
}

// BetHandler serves stake admission and lookup endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logHandler(logger, "bet"),
	}
}

type placeBetRequest struct {
	Outcome              int       `json:"outcome"`
	Amount               int64     `json:"amount"`
	MinAcceptableOddsBps int64     `json:"min_acceptable_odds_bps,omitempty"`
	TxDeadline           time.Time `json:"tx_deadline,omitempty"`
}

type placeBetResponse struct {
	Bet  betResponse  `json:"bet"`
	Odds oddsResponse `json:"odds"`
}

// Place admits a stake into the market pool. The bettor is taken from the
// X-Account header.
// POST /api/markets/{id}/bets
func (h *BetHandler) Place(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	bettor := account(r)
	if bettor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req placeBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.bets.PlaceBet(r.Context(), id, bettor,
		domain.Outcome(req.Outcome), req.Amount, req.MinAcceptableOddsBps, req.TxDeadline)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeBetResponse{
		Bet: toBetResponse(res.Bet),
		Odds: oddsResponse{
			MarketID:    id,
			Outcome1Bps: res.Odds.Outcome1Bps,
			Outcome2Bps: res.Odds.Outcome2Bps,
		},
	})
}

// Get returns the single stake record for an (account, market) pair.
// GET /api/markets/{id}/bets/{account}
func (h *BetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	acct := pathParam(r, "account")
	if acct == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	bet, err := h.bets.GetBet(r.Context(), id, acct)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBetResponse(bet))
}
