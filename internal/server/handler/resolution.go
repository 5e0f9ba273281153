package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// ResolutionService defines the arbiter operations the resolution handler
// requires.
type ResolutionService interface {
	ProposeResolution(ctx context.Context, marketID, resolver string, outcome domain.Outcome, evidence string) error
	Dispute(ctx context.Context, marketID, disputor, reason string, bond int64) (domain.Dispute, error)
	FinalizeResolution(ctx context.Context, marketID, caller string) error
	AdminResolveMarket(ctx context.Context, marketID, admin string, outcome domain.Outcome, note string) error
	OverrideResolution(ctx context.Context, marketID, admin string, outcome domain.Outcome, note string) error
	ResolveDispute(ctx context.Context, marketID, admin string, outcome domain.Outcome, disputorWins bool) error
	GetDispute(ctx context.Context, marketID string) (domain.Dispute, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// ResolutionHandler serves outcome resolution and dispute endpoints.
type ResolutionHandler struct {
	arbiter ResolutionService
	logger  *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler with the given service
// and logger.
func NewResolutionHandler(arbiter ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		arbiter: arbiter,
		logger:  logHandler(logger, "resolution"),
	}
}

type proposeRequest struct {
	Outcome  int    `json:"outcome"`
	Evidence string `json:"evidence,omitempty"`
}

// Propose records a proposed outcome after the market deadline and opens
// the dispute window. Resolver role required.
// POST /api/markets/{id}/resolution/propose
func (h *ResolutionHandler) Propose(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	resolver := account(r)
	if resolver == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.arbiter.ProposeResolution(r.Context(), id, resolver, domain.Outcome(req.Outcome), req.Evidence); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	h.writeMarket(w, r, id)
}

type disputeRequest struct {
	Reason string `json:"reason"`
	Bond   int64  `json:"bond"`
}

// Dispute challenges a proposed resolution. The challenger posts a bond
// that is refunded if the dispute is upheld and forfeited otherwise.
// POST /api/markets/{id}/resolution/dispute
func (h *ResolutionHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	disputor := account(r)
	if disputor == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req disputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d, err := h.arbiter.Dispute(r.Context(), id, disputor, req.Reason, req.Bond)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDisputeResponse(d))
}

// Finalize settles a market on its proposed outcome once the dispute
// window has elapsed without a challenge. Open to any account.
// POST /api/markets/{id}/resolution/finalize
func (h *ResolutionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	caller := account(r)
	if caller == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	if err := h.arbiter.FinalizeResolution(r.Context(), id, caller); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	h.writeMarket(w, r, id)
}

type adminResolveRequest struct {
	Outcome int    `json:"outcome"`
	Note    string `json:"note,omitempty"`
}

// AdminResolve finalizes a market directly, bypassing the dispute window.
// Admin only.
// POST /api/markets/{id}/resolution/admin-resolve
func (h *ResolutionHandler) AdminResolve(w http.ResponseWriter, r *http.Request) {
	h.adminFinalize(w, r, h.arbiter.AdminResolveMarket)
}

// Override replaces a proposed or disputed resolution with the admin's
// outcome and finalizes. Admin only.
// POST /api/markets/{id}/resolution/override
func (h *ResolutionHandler) Override(w http.ResponseWriter, r *http.Request) {
	h.adminFinalize(w, r, h.arbiter.OverrideResolution)
}

type resolveDisputeRequest struct {
	Outcome      int  `json:"outcome"`
	DisputorWins bool `json:"disputor_wins"`
}

// ResolveDispute rules on an active dispute: the bond is returned to the
// challenger when upheld and forfeited to the fee payee otherwise, then the
// market finalizes on the given outcome. Admin only.
// POST /api/markets/{id}/resolution/dispute/resolve
func (h *ResolutionHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	admin := account(r)
	if admin == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req resolveDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.arbiter.ResolveDispute(r.Context(), id, admin, domain.Outcome(req.Outcome), req.DisputorWins); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	h.writeMarket(w, r, id)
}

// GetDispute returns the active dispute for a market.
// GET /api/markets/{id}/dispute
func (h *ResolutionHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	d, err := h.arbiter.GetDispute(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (h *ResolutionHandler) adminFinalize(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, marketID, admin string, outcome domain.Outcome, note string) error) {
	id := pathParam(r, "id")
	admin := account(r)
	if admin == "" {
		writeError(w, http.StatusBadRequest, "missing X-Account header")
		return
	}

	var req adminResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := fn(r.Context(), id, admin, domain.Outcome(req.Outcome), req.Note); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	h.writeMarket(w, r, id)
}

func (h *ResolutionHandler) writeMarket(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.arbiter.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}
