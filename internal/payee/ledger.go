package payee

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// Ledger implements domain.FeePayee by crediting fee shares to a fixed
// account on the balance book. It is used when no external distribution
// service is configured, so fees stay inside the ledger instead of piling
// up in the accumulated-fee fallback.
type Ledger struct {
	treasury domain.Treasury
	account  string
	logger   *slog.Logger
}

// NewLedger creates a Ledger payee crediting the given account.
func NewLedger(treasury domain.Treasury, account string, logger *slog.Logger) *Ledger {
	return &Ledger{
		treasury: treasury,
		account:  account,
		logger:   logger,
	}
}

// Receive credits the fee amount to the configured account.
func (l *Ledger) Receive(ctx context.Context, marketID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("payee: non-positive amount %d", amount)
	}
	if err := l.treasury.Credit(ctx, l.account, amount); err != nil {
		return fmt.Errorf("payee: ledger credit for %s: %w", marketID, err)
	}
	l.logger.DebugContext(ctx, "fee credited to ledger payee",
		slog.String("market_id", marketID),
		slog.String("account", l.account),
		slog.Int64("amount", amount),
	)
	return nil
}

// Compile-time interface check.
var _ domain.FeePayee = (*Ledger)(nil)
