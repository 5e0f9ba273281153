package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// DisputeStore implements domain.DisputeStore using PostgreSQL.
type DisputeStore struct {
	pool *pgxpool.Pool
}

// NewDisputeStore creates a new DisputeStore backed by the given connection pool.
func NewDisputeStore(pool *pgxpool.Pool) *DisputeStore {
	return &DisputeStore{pool: pool}
}

const disputeCols = `id, market_id, disputor, bond, reason, active, upheld,
	opened_at, closed_at`

// Upsert inserts or updates a dispute. A partial unique index on the table
// enforces at most one active dispute per market.
func (s *DisputeStore) Upsert(ctx context.Context, d domain.Dispute) error {
	const query = `
		INSERT INTO disputes (
			id, market_id, disputor, bond, reason, active, upheld,
			opened_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			active    = EXCLUDED.active,
			upheld    = EXCLUDED.upheld,
			closed_at = EXCLUDED.closed_at`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.MarketID, d.Disputor, d.Bond, d.Reason, d.Active, d.Upheld,
		d.OpenedAt, d.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert dispute %s: %w", d.ID, err)
	}
	return nil
}

// scanDispute scans a single dispute row into a domain.Dispute.
func scanDispute(row pgx.Row) (domain.Dispute, error) {
	var d domain.Dispute
	err := row.Scan(
		&d.ID, &d.MarketID, &d.Disputor, &d.Bond, &d.Reason, &d.Active, &d.Upheld,
		&d.OpenedAt, &d.ClosedAt,
	)
	if err != nil {
		return domain.Dispute{}, err
	}
	return d, nil
}

// GetActive retrieves the active dispute for a market, if any.
func (s *DisputeStore) GetActive(ctx context.Context, marketID string) (domain.Dispute, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+disputeCols+` FROM disputes WHERE market_id = $1 AND active`, marketID)
	d, err := scanDispute(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Dispute{}, domain.ErrNotFound
		}
		return domain.Dispute{}, fmt.Errorf("postgres: get active dispute for %s: %w", marketID, err)
	}
	return d, nil
}

// ListByMarket returns every dispute ever raised against a market.
func (s *DisputeStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Dispute, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+disputeCols+` FROM disputes WHERE market_id = $1 ORDER BY opened_at ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list disputes for %s: %w", marketID, err)
	}
	defer rows.Close()

	var disputes []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list disputes rows: %w", err)
	}
	return disputes, nil
}
