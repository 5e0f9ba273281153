package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, outcome_1, outcome_2, creator, state, result,
	trading_fee_bps, bond_fee_bps, voluntary_bps, voluntary_amount,
	platform_bps, creator_bps, staking_bps,
	bond, bond_refunded, deadline,
	pool_1, pool_2, total_pool,
	settled_fee, accumulated_fees, claimed_total,
	proposed_outcome, evidence, resolved_at, dispute_ends_at, finalized_at,
	reject_reason, created_at, updated_at`

// Upsert inserts or updates a single market. The market row is the commit
// point for settlement operations, so the full aggregate state is written
// every time.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, question, outcome_1, outcome_2, creator, state, result,
			trading_fee_bps, bond_fee_bps, voluntary_bps, voluntary_amount,
			platform_bps, creator_bps, staking_bps,
			bond, bond_refunded, deadline,
			pool_1, pool_2, total_pool,
			settled_fee, accumulated_fees, claimed_total,
			proposed_outcome, evidence, resolved_at, dispute_ends_at, finalized_at,
			reject_reason, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22, $23,
			$24, $25, $26, $27, $28,
			$29, $30, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			state            = EXCLUDED.state,
			result           = EXCLUDED.result,
			bond_refunded    = EXCLUDED.bond_refunded,
			pool_1           = EXCLUDED.pool_1,
			pool_2           = EXCLUDED.pool_2,
			total_pool       = EXCLUDED.total_pool,
			settled_fee      = EXCLUDED.settled_fee,
			accumulated_fees = EXCLUDED.accumulated_fees,
			claimed_total    = EXCLUDED.claimed_total,
			proposed_outcome = EXCLUDED.proposed_outcome,
			evidence         = EXCLUDED.evidence,
			resolved_at      = EXCLUDED.resolved_at,
			dispute_ends_at  = EXCLUDED.dispute_ends_at,
			finalized_at     = EXCLUDED.finalized_at,
			reject_reason    = EXCLUDED.reject_reason,
			updated_at       = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, m.Outcome1, m.Outcome2, m.Creator, string(m.State), int(m.Result),
		m.Fees.TradingFeeBps, m.Fees.BondFeeBps, m.Fees.VoluntaryBps, m.Fees.VoluntaryAmount,
		m.Fees.PlatformBps, m.Fees.CreatorBps, m.Fees.StakingBps,
		m.Bond, m.BondRefunded, m.Deadline,
		m.Pool1, m.Pool2, m.TotalPool,
		m.SettledFee, m.AccumulatedFees, m.ClaimedTotal,
		int(m.ProposedOutcome), m.Evidence, m.ResolvedAt, m.DisputeEndsAt, m.FinalizedAt,
		m.RejectReason, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var state string
	var result, proposed int
	err := row.Scan(
		&m.ID, &m.Question, &m.Outcome1, &m.Outcome2, &m.Creator, &state, &result,
		&m.Fees.TradingFeeBps, &m.Fees.BondFeeBps, &m.Fees.VoluntaryBps, &m.Fees.VoluntaryAmount,
		&m.Fees.PlatformBps, &m.Fees.CreatorBps, &m.Fees.StakingBps,
		&m.Bond, &m.BondRefunded, &m.Deadline,
		&m.Pool1, &m.Pool2, &m.TotalPool,
		&m.SettledFee, &m.AccumulatedFees, &m.ClaimedTotal,
		&proposed, &m.Evidence, &m.ResolvedAt, &m.DisputeEndsAt, &m.FinalizedAt,
		&m.RejectReason, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.State = domain.MarketState(state)
	m.Result = domain.Result(result)
	m.ProposedOutcome = domain.Outcome(proposed)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets with pagination and optional state filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// ListSettledBefore returns terminal markets finalized strictly before the
// cutoff. Used by the archiver to find rows eligible for cold storage.
func (s *MarketStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE state IN ('finalized', 'cancelled', 'rejected')
		  AND finalized_at IS NOT NULL AND finalized_at < $1
		ORDER BY finalized_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settled market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settled markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
