package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// ProposeResolution starts the resolution of an ACTIVE market. Resolver
// role only, valid once the ledger clock has reached the deadline
// (boundary inclusive: exactly-at-deadline succeeds). It records the
// proposed outcome and opens the dispute window.
func (s *Service) ProposeResolution(ctx context.Context, marketID, resolver string, outcome domain.Outcome, evidence string) error {
	if !s.access.HasRole(domain.RoleResolver, resolver) && !s.access.HasRole(domain.RoleAdmin, resolver) {
		return fmt.Errorf("settlement: propose by %s: %w", resolver, domain.ErrUnauthorized)
	}
	if !outcome.Valid() {
		return fmt.Errorf("settlement: propose outcome %d: %w", outcome, domain.ErrInvalidOutcome)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State.Terminal() {
			return fmt.Errorf("settlement: propose on %s: %w", marketID, domain.ErrAlreadyResolved)
		}
		if m.State != domain.MarketStateActive {
			return fmt.Errorf("settlement: propose on %s in state %s: %w", marketID, m.State, domain.ErrMarketNotActive)
		}
		now := s.clock.Now()
		if now.Before(m.Deadline) {
			return fmt.Errorf("settlement: propose on %s before deadline: %w", marketID, domain.ErrTooEarly)
		}

		mc := m.Clone()
		mc.State = domain.MarketStateResolving
		mc.ProposedOutcome = outcome
		mc.Evidence = evidence
		mc.ResolvedAt = &now
		windowEnd := now.Add(s.params.DisputeWindow)
		mc.DisputeEndsAt = &windowEnd

		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.market = mc

		s.audit(ctx, "resolution_proposed", marketID, map[string]any{
			"resolver": resolver,
			"outcome":  int(outcome),
		})
		s.publish(ctx, ChannelResolution, eventResolutionProposed, mc, map[string]any{
			"outcome":         int(outcome),
			"dispute_ends_at": windowEnd,
		})
		return nil
	})
}

// Dispute challenges a proposed resolution during the dispute window. Any
// account may dispute with a bond at or above the minimum; only one
// dispute can be active per market.
func (s *Service) Dispute(ctx context.Context, marketID, disputor, reason string, bond int64) (domain.Dispute, error) {
	var out domain.Dispute
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State == domain.MarketStateDisputed {
			return fmt.Errorf("settlement: dispute on %s: %w", marketID, domain.ErrDisputeActive)
		}
		if m.State != domain.MarketStateResolving {
			return fmt.Errorf("settlement: dispute on %s in state %s: %w", marketID, m.State, domain.ErrNotResolving)
		}
		now := s.clock.Now()
		if m.DisputeEndsAt != nil && now.After(*m.DisputeEndsAt) {
			return fmt.Errorf("settlement: dispute on %s: %w", marketID, domain.ErrDisputeWindowOver)
		}
		if bond < s.params.MinDisputeBond {
			return fmt.Errorf("settlement: dispute bond %d < %d: %w", bond, s.params.MinDisputeBond, domain.ErrDisputeBondLow)
		}

		d := domain.Dispute{
			ID:       uuid.New().String(),
			MarketID: marketID,
			Disputor: disputor,
			Bond:     bond,
			Reason:   reason,
			Active:   true,
			OpenedAt: now,
		}

		mc := m.Clone()
		mc.State = domain.MarketStateDisputed

		if err := s.stores.Disputes.Upsert(ctx, d); err != nil {
			return fmt.Errorf("settlement: persist dispute %s: %w", d.ID, err)
		}
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.market = mc
		agg.dispute = &d
		out = d

		s.audit(ctx, "resolution_disputed", marketID, map[string]any{
			"disputor": disputor,
			"bond":     bond,
			"reason":   reason,
		})
		s.publish(ctx, ChannelResolution, eventResolutionDisputed, mc, map[string]any{
			"disputor": disputor,
		})
		s.alert(ctx, "dispute", "Resolution disputed",
			fmt.Sprintf("Market %s: %s disputed the proposed outcome: %s", marketID, disputor, reason))
		return nil
	})
	return out, err
}

// FinalizeResolution settles a RESOLVING market on its proposed outcome
// once the dispute window has elapsed without a challenge. Any account may
// crank it; the expired window itself is the authorization.
func (s *Service) FinalizeResolution(ctx context.Context, marketID, caller string) error {
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State.Terminal() {
			return fmt.Errorf("settlement: finalize %s: %w", marketID, domain.ErrAlreadyResolved)
		}
		if m.State != domain.MarketStateResolving {
			return fmt.Errorf("settlement: finalize %s in state %s: %w", marketID, m.State, domain.ErrNotResolving)
		}
		now := s.clock.Now()
		if m.DisputeEndsAt == nil || !now.After(*m.DisputeEndsAt) {
			return fmt.Errorf("settlement: finalize %s: %w", marketID, domain.ErrDisputeWindowOpen)
		}

		return s.finalize(ctx, agg, m.ProposedOutcome, true, map[string]any{
			"caller": caller,
			"event":  "resolution_finalized",
		})
	})
}

// AdminResolveMarket finalizes a RESOLVING or DISPUTED market immediately
// with the given outcome, bypassing the remaining dispute window. An active
// dispute is closed with its bond returned to the disputor.
func (s *Service) AdminResolveMarket(ctx context.Context, marketID, admin string, outcome domain.Outcome, note string) error {
	return s.adminFinalize(ctx, marketID, admin, outcome, note, "admin_resolved")
}

// OverrideResolution is the corrective variant of AdminResolveMarket; the
// two share semantics and differ only in audit trail naming.
func (s *Service) OverrideResolution(ctx context.Context, marketID, admin string, outcome domain.Outcome, note string) error {
	return s.adminFinalize(ctx, marketID, admin, outcome, note, "resolution_overridden")
}

func (s *Service) adminFinalize(ctx context.Context, marketID, admin string, outcome domain.Outcome, note, auditEvent string) error {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return fmt.Errorf("settlement: %s by %s: %w", auditEvent, admin, domain.ErrUnauthorized)
	}
	if !outcome.Valid() {
		return fmt.Errorf("settlement: %s outcome %d: %w", auditEvent, outcome, domain.ErrInvalidOutcome)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State.Terminal() {
			return fmt.Errorf("settlement: %s on %s: %w", auditEvent, marketID, domain.ErrAlreadyResolved)
		}
		if m.State != domain.MarketStateResolving && m.State != domain.MarketStateDisputed {
			return fmt.Errorf("settlement: %s on %s in state %s: %w", auditEvent, marketID, m.State, domain.ErrNotResolving)
		}

		// An admin decision without an explicit dispute verdict returns
		// the dispute bond; forfeiture requires ResolveDispute.
		return s.finalize(ctx, agg, outcome, true, map[string]any{
			"admin": admin,
			"note":  note,
			"event": auditEvent,
		})
	})
}

// ResolveDispute decides an active dispute: it finalizes the market with
// the given outcome and either returns or forfeits the disputor's bond.
func (s *Service) ResolveDispute(ctx context.Context, marketID, admin string, outcome domain.Outcome, disputorWins bool) error {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return fmt.Errorf("settlement: resolve dispute by %s: %w", admin, domain.ErrUnauthorized)
	}
	if !outcome.Valid() {
		return fmt.Errorf("settlement: resolve dispute outcome %d: %w", outcome, domain.ErrInvalidOutcome)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State.Terminal() {
			return fmt.Errorf("settlement: resolve dispute on %s: %w", marketID, domain.ErrAlreadyResolved)
		}
		if m.State != domain.MarketStateDisputed {
			return fmt.Errorf("settlement: resolve dispute on %s in state %s: %w", marketID, m.State, domain.ErrNoActiveDispute)
		}

		return s.finalize(ctx, agg, outcome, disputorWins, map[string]any{
			"admin":         admin,
			"disputor_wins": disputorWins,
		})
	})
}

// AdminCancel force-cancels a market from any non-terminal state. All
// stakes become refundable at full value; no fee is taken.
func (s *Service) AdminCancel(ctx context.Context, marketID, admin, note string) error {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return fmt.Errorf("settlement: cancel by %s: %w", admin, domain.ErrUnauthorized)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State.Terminal() {
			return fmt.Errorf("settlement: cancel %s: %w", marketID, domain.ErrAlreadyResolved)
		}

		mc := m.Clone()
		s.cancel(mc)
		if err := s.closeDispute(ctx, agg, mc, true); err != nil {
			return err
		}
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.market = mc

		s.audit(ctx, "market_cancelled", marketID, map[string]any{
			"admin": admin,
			"note":  note,
		})
		s.publish(ctx, ChannelMarket, eventMarketCancelled, mc, map[string]any{"note": note})
		return nil
	})
}

// finalize settles the market under the aggregate lock. If nobody staked
// on the winning outcome the market is cancelled instead, regardless of
// the chosen outcome. Otherwise the trading fee is computed and frozen,
// the creator share is credited, and the platform+staking shares are
// forwarded to the fee payee; a payee failure diverts the amount into
// accumulatedFees rather than aborting the finalization.
func (s *Service) finalize(ctx context.Context, agg *aggregate, outcome domain.Outcome, disputorWins bool, detail map[string]any) error {
	m := agg.market
	mc := m.Clone()
	now := s.clock.Now()

	if mc.Pool(outcome) == 0 {
		s.cancel(mc)
	} else {
		mc.State = domain.MarketStateFinalized
		if outcome == domain.Outcome1 {
			mc.Result = domain.ResultOutcome1
		} else {
			mc.Result = domain.ResultOutcome2
		}
		mc.FinalizedAt = &now

		fee := mc.TotalPool * mc.Fees.TradingFeeBps / domain.BpsDenominator
		mc.SettledFee = fee

		if fee > 0 {
			split, err := s.fees.SplitFee(fee, mc.Fees.PlatformBps, mc.Fees.CreatorBps, mc.Fees.StakingBps)
			if err != nil {
				return err
			}
			// Creator share goes through the internal balance book; a
			// failure there parks the value exactly like a payee refusal.
			if split.Creator > 0 {
				if err := s.treasury.Credit(ctx, mc.Creator, split.Creator); err != nil {
					mc.AccumulatedFees += split.Creator
					s.logger.ErrorContext(ctx, "creator fee credit failed",
						slog.String("market_id", mc.ID),
						slog.String("error", err.Error()),
					)
				}
			}
			s.forwardOrAccumulate(ctx, mc, split.Platform+split.Staking, "settlement_fee")
		}
	}

	if err := s.closeDispute(ctx, agg, mc, disputorWins); err != nil {
		return err
	}
	if err := s.persistMarket(ctx, mc); err != nil {
		return err
	}
	agg.market = mc

	if detail == nil {
		detail = map[string]any{}
	}
	detail["result"] = int(mc.Result)
	detail["fee"] = mc.SettledFee
	s.audit(ctx, "market_finalized", mc.ID, detail)
	s.publish(ctx, ChannelResolution, eventMarketFinalized, mc, map[string]any{
		"result": int(mc.Result),
		"fee":    mc.SettledFee,
	})
	s.alert(ctx, "finalized", "Market finalized",
		fmt.Sprintf("Market %s finalized with result %d (fee %d)", mc.ID, mc.Result, mc.SettledFee))
	return nil
}

// cancel marks the clone cancelled: full refunds, no fee.
func (s *Service) cancel(mc *domain.Market) {
	now := s.clock.Now()
	mc.State = domain.MarketStateCancelled
	mc.Result = domain.ResultCancelled
	mc.SettledFee = 0
	mc.FinalizedAt = &now
}

// closeDispute closes the active dispute on the clone's market, returning
// the bond to the disputor or forfeiting it to the fee payee.
func (s *Service) closeDispute(ctx context.Context, agg *aggregate, mc *domain.Market, disputorWins bool) error {
	if agg.dispute == nil {
		return nil
	}
	d := *agg.dispute
	now := s.clock.Now()
	d.Active = false
	d.ClosedAt = &now
	upheld := disputorWins
	d.Upheld = &upheld

	if disputorWins {
		if err := s.treasury.Credit(ctx, d.Disputor, d.Bond); err != nil {
			mc.AccumulatedFees += d.Bond
			s.logger.ErrorContext(ctx, "dispute bond refund failed",
				slog.String("market_id", mc.ID),
				slog.String("error", err.Error()),
			)
		}
	} else {
		s.forwardOrAccumulate(ctx, mc, d.Bond, "forfeited_dispute_bond")
	}

	if err := s.stores.Disputes.Upsert(ctx, d); err != nil {
		return fmt.Errorf("settlement: close dispute %s: %w", d.ID, err)
	}
	agg.dispute = nil
	return nil
}

// forwardOrAccumulate sends value to the external fee payee. A failing or
// unresponsive payee must never block settlement: on error the amount is
// added to the market's accumulated-fee ledger for a later admin sweep.
func (s *Service) forwardOrAccumulate(ctx context.Context, mc *domain.Market, amount int64, kind string) {
	if amount <= 0 {
		return
	}
	if s.payee == nil {
		mc.AccumulatedFees += amount
		return
	}
	if err := s.payee.Receive(ctx, mc.ID, amount); err != nil {
		mc.AccumulatedFees += amount
		s.logger.WarnContext(ctx, "fee payee rejected transfer",
			slog.String("market_id", mc.ID),
			slog.String("kind", kind),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
		s.alert(ctx, "fee_forward_failed", "Fee forwarding failed",
			fmt.Sprintf("Market %s: %s of %d diverted to accumulated fees", mc.ID, kind, amount))
	}
}
