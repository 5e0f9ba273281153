package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the domain stores for
// settled markets, serializing each market with its bets and disputes to
// JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	markets  domain.MarketStore
	bets     domain.BetStore
	disputes domain.DisputeStore
	audit    domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	markets domain.MarketStore,
	bets domain.BetStore,
	disputes domain.DisputeStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		markets:  markets,
		bets:     bets,
		disputes: disputes,
		audit:    audit,
	}
}

// archivedMarket is one JSONL record: the full market aggregate at rest.
type archivedMarket struct {
	Market   domain.Market    `json:"market"`
	Bets     []domain.Bet     `json:"bets"`
	Disputes []domain.Dispute `json:"disputes,omitempty"`
}

// ArchiveSettled queries markets settled strictly before the cutoff,
// serializes each with its bets and disputes to JSONL, and uploads the file
// to S3 at archive/markets/YYYY-MM.jsonl. The archival event is recorded in
// the audit log and the count of archived markets is returned.
func (a *ArchiveImpl) ArchiveSettled(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	records := make([]archivedMarket, 0, len(markets))
	for _, m := range markets {
		bets, err := a.bets.ListByMarket(ctx, m.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settled bets for %s: %w", m.ID, err)
		}
		disputes, err := a.disputes.ListByMarket(ctx, m.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settled disputes for %s: %w", m.ID, err)
		}
		records = append(records, archivedMarket{
			Market:   m,
			Bets:     bets,
			Disputes: disputes,
		})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled marshal: %w", err)
	}

	path := archivePath("markets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.markets", "", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive settled audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
