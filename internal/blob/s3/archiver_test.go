package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = buf
	w.types[path] = contentType
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type stubMarketStore struct {
	domain.MarketStore
	settled []domain.Market
}

func (s *stubMarketStore) ListSettledBefore(context.Context, time.Time) ([]domain.Market, error) {
	return s.settled, nil
}

type stubBetStore struct {
	domain.BetStore
	bets map[string][]domain.Bet
}

func (s *stubBetStore) ListByMarket(_ context.Context, marketID string) ([]domain.Bet, error) {
	return s.bets[marketID], nil
}

type stubDisputeStore struct {
	domain.DisputeStore
}

func (s *stubDisputeStore) ListByMarket(context.Context, string) ([]domain.Dispute, error) {
	return nil, nil
}

type stubAuditStore struct {
	events []string
}

func (s *stubAuditStore) Log(_ context.Context, event, _ string, _ map[string]any) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubAuditStore) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveSettled(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	markets := []domain.Market{
		{ID: "m1", State: domain.MarketStateFinalized},
		{ID: "m2", State: domain.MarketStateCancelled},
	}
	bets := map[string][]domain.Bet{
		"m1": {{MarketID: "m1", Account: "alice", Amount: 100}},
	}

	w := newMemWriter()
	audit := &stubAuditStore{}
	a := NewArchiver(w, &stubMarketStore{settled: markets}, &stubBetStore{bets: bets}, &stubDisputeStore{}, audit)

	count, err := a.ArchiveSettled(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	path := "archive/markets/2026-02.jsonl"
	data, ok := w.objects[path]
	require.True(t, ok, "expected object at %s", path)
	assert.Equal(t, "application/x-ndjson", w.types[path])

	// One JSON line per market, each carrying its bets.
	var lines []archivedMarket
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var rec archivedMarket
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "m1", lines[0].Market.ID)
	assert.Len(t, lines[0].Bets, 1)
	assert.Empty(t, lines[1].Bets)

	assert.Equal(t, []string{"archive.markets"}, audit.events)
}

func TestArchiveSettled_NothingToDo(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w, &stubMarketStore{}, &stubBetStore{}, &stubDisputeStore{}, &stubAuditStore{})

	count, err := a.ArchiveSettled(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, w.objects)
}
