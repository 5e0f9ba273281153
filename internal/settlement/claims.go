package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// ClaimResult reports a claim's outcome. Parked is set when the payout was
// recorded but the outward transfer failed; the amount waits in the
// account's unclaimed ledger and is retried via RetryUnclaimed.
type ClaimResult struct {
	Amount int64 `json:"amount"`
	Parked bool  `json:"parked"`
}

// ClaimWinnings pays out the caller's share of a settled market. The
// claimed flag is persisted before the outward transfer: a re-entrant call
// observes "already claimed" and is rejected, closing the reentrancy
// window. The transfer itself is bounded by ClaimTimeout so a slow
// receiver cannot hold the operation open.
func (s *Service) ClaimWinnings(ctx context.Context, marketID, account string) (ClaimResult, error) {
	var res ClaimResult
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State != domain.MarketStateFinalized && m.State != domain.MarketStateCancelled {
			return fmt.Errorf("settlement: claim on %s in state %s: market not resolved: %w", marketID, m.State, domain.ErrNotResolved)
		}

		bet, ok := agg.bets[account]
		if !ok {
			return fmt.Errorf("settlement: claim by %s on %s: %w", account, marketID, domain.ErrNothingToClaim)
		}
		if bet.Claimed {
			return fmt.Errorf("settlement: claim by %s on %s: %w", account, marketID, domain.ErrAlreadyClaimed)
		}

		amount := payout(m, *bet)
		if amount <= 0 {
			return fmt.Errorf("settlement: claim by %s on %s: zero payout: %w", account, marketID, domain.ErrNothingToClaim)
		}
		// Escrow can run dry only after an emergency sweep; a later
		// claimer must not be paid from thin air.
		if remaining := m.TotalPool - m.SettledFee - m.ClaimedTotal; amount > remaining {
			return fmt.Errorf("settlement: claim by %s on %s: escrow exhausted: %w", account, marketID, domain.ErrNothingToClaim)
		}

		// Effects before interaction: mark claimed and persist, then move
		// the value out.
		now := s.clock.Now()
		bc := *bet
		bc.Claimed = true
		bc.ClaimedAt = &now
		bc.UpdatedAt = now

		mc := m.Clone()
		mc.ClaimedTotal += amount

		if err := s.stores.Bets.Upsert(ctx, bc); err != nil {
			return fmt.Errorf("settlement: persist claim %s/%s: %w", marketID, account, err)
		}
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.bets[account] = &bc
		agg.market = mc

		transferCtx := ctx
		if s.params.ClaimTimeout > 0 {
			var cancel context.CancelFunc
			transferCtx, cancel = context.WithTimeout(ctx, s.params.ClaimTimeout)
			defer cancel()
		}

		if err := s.treasury.Credit(transferCtx, account, amount); err != nil {
			// The claim is committed; park the value for an explicit
			// retry instead of reopening the claimed flag.
			bc.Unclaimed = amount
			bc.UpdatedAt = s.clock.Now()
			if perr := s.stores.Bets.Upsert(ctx, bc); perr != nil {
				s.logger.ErrorContext(ctx, "parking unclaimed payout failed",
					slog.String("market_id", marketID),
					slog.String("account", account),
					slog.String("error", perr.Error()),
				)
				return fmt.Errorf("settlement: park unclaimed payout %s/%s: %w", marketID, account, perr)
			}
			agg.bets[account] = &bc
			s.logger.WarnContext(ctx, "payout transfer failed, parked as unclaimed",
				slog.String("market_id", marketID),
				slog.String("account", account),
				slog.Int64("amount", amount),
				slog.String("error", err.Error()),
			)
			s.audit(ctx, "claim_parked", marketID, map[string]any{
				"account": account,
				"amount":  amount,
			})
			res = ClaimResult{Amount: amount, Parked: true}
			return nil
		}

		res = ClaimResult{Amount: amount}
		s.audit(ctx, "winnings_claimed", marketID, map[string]any{
			"account": account,
			"amount":  amount,
		})
		s.publish(ctx, ChannelClaim, eventWinningsClaimed, mc, map[string]any{
			"account": account,
			"amount":  amount,
		})
		return nil
	})
	return res, err
}

// RetryUnclaimed re-attempts the outward transfer of a payout that was
// parked by a failed claim transfer.
func (s *Service) RetryUnclaimed(ctx context.Context, marketID, account string) (int64, error) {
	var amount int64
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		bet, ok := agg.bets[account]
		if !ok || bet.Unclaimed <= 0 {
			return fmt.Errorf("settlement: retry unclaimed %s/%s: %w", marketID, account, domain.ErrNothingToClaim)
		}

		transferCtx := ctx
		if s.params.ClaimTimeout > 0 {
			var cancel context.CancelFunc
			transferCtx, cancel = context.WithTimeout(ctx, s.params.ClaimTimeout)
			defer cancel()
		}
		if err := s.treasury.Credit(transferCtx, account, bet.Unclaimed); err != nil {
			return fmt.Errorf("settlement: retry unclaimed %s/%s: %w", marketID, account, err)
		}

		amount = bet.Unclaimed
		bc := *bet
		bc.Unclaimed = 0
		bc.UpdatedAt = s.clock.Now()
		if err := s.stores.Bets.Upsert(ctx, bc); err != nil {
			return fmt.Errorf("settlement: persist unclaimed retry %s/%s: %w", marketID, account, err)
		}
		agg.bets[account] = &bc

		s.audit(ctx, "unclaimed_paid", marketID, map[string]any{
			"account": account,
			"amount":  amount,
		})
		return nil
	})
	return amount, err
}

// WithdrawAccumulatedFees sweeps fee value the payee refused directly to
// the calling admin's balance and zeroes the ledger entry.
func (s *Service) WithdrawAccumulatedFees(ctx context.Context, marketID, admin string) (int64, error) {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return 0, fmt.Errorf("settlement: withdraw fees by %s: %w", admin, domain.ErrUnauthorized)
	}
	var amount int64
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.AccumulatedFees <= 0 {
			return fmt.Errorf("settlement: withdraw fees on %s: %w", marketID, domain.ErrNothingToClaim)
		}

		amount = m.AccumulatedFees
		mc := m.Clone()
		mc.AccumulatedFees = 0
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		if err := s.treasury.Credit(ctx, admin, amount); err != nil {
			// Roll the ledger entry back in memory and on disk; the
			// operation failed as a unit.
			mc.AccumulatedFees = amount
			if perr := s.persistMarket(ctx, mc); perr != nil {
				return fmt.Errorf("settlement: restore accumulated fees on %s: %w", marketID, perr)
			}
			agg.market = mc
			return fmt.Errorf("settlement: withdraw fees on %s: %w", marketID, err)
		}
		agg.market = mc

		s.audit(ctx, "accumulated_fees_withdrawn", marketID, map[string]any{
			"admin":  admin,
			"amount": amount,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// EmergencyWithdraw sweeps every remaining unit held for a market to the
// calling admin. Allowed only once the emergency delay (90 days by
// default) has passed since the market's deadline; it is the last-resort
// recovery path for abandoned markets and is logged as exceptional.
func (s *Service) EmergencyWithdraw(ctx context.Context, marketID, admin string) (int64, error) {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return 0, fmt.Errorf("settlement: emergency withdraw by %s: %w", admin, domain.ErrUnauthorized)
	}
	var amount int64
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		now := s.clock.Now()
		if now.Before(m.Deadline.Add(s.params.EmergencyDelay)) {
			return fmt.Errorf("settlement: emergency withdraw on %s: %w", marketID, domain.ErrEmergencyTooEarly)
		}

		remaining := m.TotalPool - m.ClaimedTotal - m.SettledFee + m.AccumulatedFees
		if !m.BondRefunded {
			remaining += m.Bond
		}
		if remaining <= 0 {
			return fmt.Errorf("settlement: emergency withdraw on %s: %w", marketID, domain.ErrNothingToClaim)
		}

		mc := m.Clone()
		mc.ClaimedTotal = mc.TotalPool - mc.SettledFee
		mc.AccumulatedFees = 0
		mc.BondRefunded = true
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		if err := s.treasury.Credit(ctx, admin, remaining); err != nil {
			// Restore the escrow state on disk; the sweep failed as a unit
			// and the funds must stay reachable.
			mc.ClaimedTotal = m.ClaimedTotal
			mc.AccumulatedFees = m.AccumulatedFees
			mc.BondRefunded = m.BondRefunded
			if perr := s.persistMarket(ctx, mc); perr != nil {
				return fmt.Errorf("settlement: restore escrow on %s: %w", marketID, perr)
			}
			agg.market = mc
			return fmt.Errorf("settlement: emergency withdraw transfer on %s: %w", marketID, err)
		}
		agg.market = mc
		amount = remaining

		s.logger.WarnContext(ctx, "emergency withdrawal executed",
			slog.String("market_id", marketID),
			slog.String("admin", admin),
			slog.Int64("amount", remaining),
		)
		s.audit(ctx, "emergency_withdrawn", marketID, map[string]any{
			"admin":  admin,
			"amount": remaining,
		})
		s.alert(ctx, "emergency_withdraw", "Emergency withdrawal",
			fmt.Sprintf("Market %s: %d swept to %s", marketID, remaining, admin))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}
