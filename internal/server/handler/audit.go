package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// AuditHandler exposes the append-only audit trail for a market.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler backed by the given store.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logHandler(logger, "audit"),
	}
}

type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	MarketID  string         `json:"market_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// List returns the audit entries for a market, newest first.
// GET /api/markets/{id}/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	entries, err := h.audit.List(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	out := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = auditEntryResponse{
			ID:        e.ID,
			Event:     e.Event,
			MarketID:  e.MarketID,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
