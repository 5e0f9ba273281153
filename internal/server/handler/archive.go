package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// archivePrefix is where the archiver parks settled-market batches.
const archivePrefix = "archive/markets/"

// ArchiveHandler serves settled-market batches back out of cold storage.
// Registered only when object storage is wired.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logHandler(logger, "archive"),
	}
}

type archiveBatchResponse struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// List enumerates the archived market batches.
// GET /api/archive/markets
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), archivePrefix)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	batches := make([]archiveBatchResponse, 0, len(infos))
	for _, info := range infos {
		batches = append(batches, archiveBatchResponse{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// Get streams one month's archived batch as JSON Lines.
// GET /api/archive/markets/{month}   (month is YYYY-MM)
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	month := pathParam(r, "month")
	if _, err := time.Parse("2006-01", month); err != nil {
		writeError(w, http.StatusBadRequest, "month must be formatted YYYY-MM")
		return
	}

	body, err := h.blobs.Get(r.Context(), fmt.Sprintf("%s%s.jsonl", archivePrefix, month))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("month", month),
			slog.String("error", err.Error()),
		)
	}
}
