package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
	"github.com/0xBased-lang/kektech-backend/internal/settlement"
)

// ClaimService defines the payout operations the claim handler requires.
type ClaimService interface {
	ClaimWinnings(ctx context.Context, marketID, account string) (settlement.ClaimResult, error)
	RetryUnclaimed(ctx context.Context, marketID, account string) (int64, error)
	CalculatePayout(ctx context.Context, marketID, account string) (int64, error)
	WithdrawAccumulatedFees(ctx context.Context, marketID, admin string) (int64, error)
	EmergencyWithdraw(ctx context.Context, marketID, admin string) (int64, error)
}

// ClaimHandler serves payout, fee-sweep and balance endpoints.
type ClaimHandler struct {
	claims   ClaimService
	balances domain.BalanceStore
	logger   *slog.Logger
}

// NewClaimHandler creates a ClaimHandler with the given service, balance
// store and logger.
func NewClaimHandler(claims ClaimService, balances domain.BalanceStore, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{
		claims:   claims,
		balances: balances,
		logger:   logHandler(logger, "claim"),
	}
}

// Claim pays out the caller's share of a settled market.
// POST /api/markets/{id}/claim
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	acct := account(r)
	if acct == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	res, err := h.claims.ClaimWinnings(r.Context(), id, acct)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Retry re-attempts the outward transfer of a payout parked as unclaimed.
// POST /api/markets/{id}/claim/retry
func (h *ClaimHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	acct := account(r)
	if acct == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	amount, err := h.claims.RetryUnclaimed(r.Context(), id, acct)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, amountResponse{Amount: amount})
}

// Payout reports what an account would receive from a settled market
// without claiming.
// GET /api/markets/{id}/payout/{account}
func (h *ClaimHandler) Payout(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	acct := pathParam(r, "account")
	if acct == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	amount, err := h.claims.CalculatePayout(r.Context(), id, acct)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, amountResponse{Amount: amount})
}

// WithdrawFees sweeps the accumulated-fee ledger to the fee payee. Admin
// only.
// POST /api/markets/{id}/fees/withdraw
func (h *ClaimHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	h.adminAmount(w, r, h.claims.WithdrawAccumulatedFees)
}

// Emergency sweeps the residual escrow of a long-settled market. Admin
// only; gated on the emergency delay after the deadline.
// POST /api/markets/{id}/emergency-withdraw
func (h *ClaimHandler) Emergency(w http.ResponseWriter, r *http.Request) {
	h.adminAmount(w, r, h.claims.EmergencyWithdraw)
}

// Balance returns the credited balance-book total for an account.
// GET /api/accounts/{account}/balance
func (h *ClaimHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acct := pathParam(r, "account")
	if acct == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	balance, err := h.balances.Get(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"balance": balance,
	})
}

func (h *ClaimHandler) adminAmount(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, marketID, admin string) (int64, error)) {
	id := pathParam(r, "id")
	admin := account(r)
	if admin == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	amount, err := fn(r.Context(), id, admin)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, amountResponse{Amount: amount})
}
