package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betCols = `market_id, account, outcome, amount, claimed, unclaimed,
	placed_at, claimed_at, updated_at`

// Upsert inserts or updates a bet keyed by (market, account). Accumulating
// bets on the same side and claim bookkeeping both go through this path.
func (s *BetStore) Upsert(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (
			market_id, account, outcome, amount, claimed, unclaimed,
			placed_at, claimed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, NOW()
		)
		ON CONFLICT (market_id, account) DO UPDATE SET
			outcome    = EXCLUDED.outcome,
			amount     = EXCLUDED.amount,
			claimed    = EXCLUDED.claimed,
			unclaimed  = EXCLUDED.unclaimed,
			claimed_at = EXCLUDED.claimed_at,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		b.MarketID, b.Account, int(b.Outcome), b.Amount, b.Claimed, b.Unclaimed,
		b.PlacedAt, b.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert bet %s/%s: %w", b.MarketID, b.Account, err)
	}
	return nil
}

// scanBet scans a single bet row into a domain.Bet.
func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var outcome int
	err := row.Scan(
		&b.MarketID, &b.Account, &outcome, &b.Amount, &b.Claimed, &b.Unclaimed,
		&b.PlacedAt, &b.ClaimedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Outcome = domain.Outcome(outcome)
	return b, nil
}

// Get retrieves one account's position in a market.
func (s *BetStore) Get(ctx context.Context, marketID, account string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 AND account = $2`,
		marketID, account)
	b, err := scanBet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s/%s: %w", marketID, account, err)
	}
	return b, nil
}

// ListByMarket returns every bet placed in a market.
func (s *BetStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY placed_at ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %s: %w", marketID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}
