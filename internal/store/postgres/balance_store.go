package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BalanceStore implements domain.BalanceStore using PostgreSQL. It is the
// internal balance book: payouts, bond refunds and fee sweeps land here and
// an external cash-out service debits it.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a new BalanceStore backed by the given connection pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Credit atomically adds amount to an account's balance, creating the row on
// first use.
func (s *BalanceStore) Credit(ctx context.Context, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("postgres: credit %s: non-positive amount %d", account, amount)
	}
	const query = `
		INSERT INTO balances (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE SET
			balance    = balances.balance + EXCLUDED.balance,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, account, amount)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

// Get returns an account's balance; unknown accounts hold zero.
func (s *BalanceStore) Get(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM balances WHERE account = $1`, account).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: get balance %s: %w", account, err)
	}
	return balance, nil
}
