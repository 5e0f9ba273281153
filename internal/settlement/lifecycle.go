package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// CreateMarketRequest carries the parameters for proposing a new market.
type CreateMarketRequest struct {
	Creator     string
	Question    string
	Outcome1    string
	Outcome2    string
	Deadline    time.Time
	Bond        int64
	Voluntary   int64 // optional voluntary fee amount
	PlatformBps int64
	CreatorBps  int64
	StakingBps  int64
}

// CreateMarket validates the proposal, escrows the creator bond, freezes
// the fee schedule, and registers the market in state PROPOSED.
func (s *Service) CreateMarket(ctx context.Context, req CreateMarketRequest) (domain.Market, error) {
	if strings.TrimSpace(req.Question) == "" {
		return domain.Market{}, fmt.Errorf("settlement: empty question: %w", domain.ErrInvalidAmount)
	}
	if strings.TrimSpace(req.Outcome1) == "" || strings.TrimSpace(req.Outcome2) == "" {
		return domain.Market{}, fmt.Errorf("settlement: both outcome labels required: %w", domain.ErrInvalidOutcome)
	}
	now := s.clock.Now()
	if !req.Deadline.After(now) {
		return domain.Market{}, fmt.Errorf("settlement: deadline not in the future: %w", domain.ErrDeadlineExpired)
	}

	bondBps, err := s.fees.BondFee(req.Bond)
	if err != nil {
		return domain.Market{}, err
	}
	volBps, err := s.fees.VoluntaryBonus(req.Voluntary)
	if err != nil {
		return domain.Market{}, err
	}
	if err := s.fees.ValidateDistribution(req.PlatformBps, req.CreatorBps, req.StakingBps); err != nil {
		return domain.Market{}, err
	}
	tradingBps := bondBps + volBps
	if tradingBps > s.params.MaxTradingFeeBps {
		tradingBps = s.params.MaxTradingFeeBps
	}

	// The voluntary fee is paid up front and taxed; the net amount rides
	// along in the fee config for audit purposes.
	_, netVoluntary := s.fees.VoluntaryFeeTax(req.Voluntary)

	m := domain.Market{
		ID:       uuid.New().String(),
		Question: strings.TrimSpace(req.Question),
		Outcome1: strings.TrimSpace(req.Outcome1),
		Outcome2: strings.TrimSpace(req.Outcome2),
		Creator:  req.Creator,
		State:    domain.MarketStateProposed,
		Result:   domain.ResultUnresolved,
		Fees: domain.FeeConfig{
			TradingFeeBps:   tradingBps,
			BondFeeBps:      bondBps,
			VoluntaryBps:    volBps,
			VoluntaryAmount: netVoluntary,
			PlatformBps:     req.PlatformBps,
			CreatorBps:      req.CreatorBps,
			StakingBps:      req.StakingBps,
		},
		Bond:      req.Bond,
		Deadline:  req.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistMarket(ctx, &m); err != nil {
		return domain.Market{}, err
	}

	s.mu.Lock()
	s.aggs[m.ID] = &aggregate{
		market: &m,
		bets:   make(map[string]*domain.Bet),
	}
	s.mu.Unlock()

	s.audit(ctx, "market_created", m.ID, map[string]any{
		"creator":         req.Creator,
		"bond":            req.Bond,
		"trading_fee_bps": tradingBps,
	})
	s.publish(ctx, ChannelMarket, eventMarketCreated, &m, map[string]any{
		"question": m.Question,
		"deadline": m.Deadline,
	})
	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.String("creator", req.Creator),
		slog.Int64("bond", req.Bond),
		slog.Int64("trading_fee_bps", tradingBps),
	)
	return m, nil
}

// Approve moves a PROPOSED market to APPROVED. Admin only; repeating the
// decision on an already-decided market is rejected, not silently ignored.
func (s *Service) Approve(ctx context.Context, marketID, admin string) error {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return fmt.Errorf("settlement: approve by %s: %w", admin, domain.ErrUnauthorized)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.Decided() {
			return fmt.Errorf("settlement: approve %s in state %s: %w", marketID, m.State, domain.ErrAlreadyDecided)
		}

		mc := m.Clone()
		mc.State = domain.MarketStateApproved
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.market = mc

		s.audit(ctx, "market_approved", marketID, map[string]any{"admin": admin})
		s.publish(ctx, ChannelMarket, eventMarketApproved, mc, nil)
		return nil
	})
}

// Reject moves a PROPOSED market to REJECTED and forfeits the creator
// bond to the fee payee (diverted to accumulated fees if the payee fails).
func (s *Service) Reject(ctx context.Context, marketID, admin, reason string) error {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return fmt.Errorf("settlement: reject by %s: %w", admin, domain.ErrUnauthorized)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.Decided() {
			return fmt.Errorf("settlement: reject %s in state %s: %w", marketID, m.State, domain.ErrAlreadyDecided)
		}

		mc := m.Clone()
		mc.State = domain.MarketStateRejected
		mc.RejectReason = reason
		// Forfeited bond goes to the payee; a refusal must not block the
		// rejection itself.
		mc.BondRefunded = true
		s.forwardOrAccumulate(ctx, mc, mc.Bond, "forfeited_bond")

		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.market = mc

		s.audit(ctx, "market_rejected", marketID, map[string]any{
			"admin":  admin,
			"reason": reason,
			"bond":   mc.Bond,
		})
		s.publish(ctx, ChannelMarket, eventMarketRejected, mc, map[string]any{"reason": reason})
		return nil
	})
}

// Activate opens an APPROVED market for betting.
func (s *Service) Activate(ctx context.Context, marketID, admin string) error {
	if !s.access.HasRole(domain.RoleAdmin, admin) {
		return fmt.Errorf("settlement: activate by %s: %w", admin, domain.ErrUnauthorized)
	}
	return s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if m.State != domain.MarketStateApproved {
			return fmt.Errorf("settlement: activate %s in state %s: %w", marketID, m.State, domain.ErrNotApproved)
		}

		mc := m.Clone()
		mc.State = domain.MarketStateActive
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		agg.market = mc

		s.audit(ctx, "market_activated", marketID, map[string]any{"admin": admin})
		s.publish(ctx, ChannelMarket, eventMarketActivated, mc, nil)
		return nil
	})
}

// RefundBond returns the escrowed creator bond. The bond is never returned
// automatically: approval only makes it claimable through this explicit
// call. The call is idempotent; once refunded (or forfeited by rejection)
// it reports zero.
func (s *Service) RefundBond(ctx context.Context, marketID, caller, reason string) (int64, error) {
	var refunded int64
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		m := agg.market
		if caller != m.Creator && !s.access.HasRole(domain.RoleAdmin, caller) {
			return fmt.Errorf("settlement: refund bond by %s: %w", caller, domain.ErrUnauthorized)
		}
		if !m.Decided() {
			return fmt.Errorf("settlement: refund bond on %s in state %s: %w", marketID, m.State, domain.ErrNotApproved)
		}
		if m.BondRefunded {
			refunded = 0
			return nil
		}

		mc := m.Clone()
		mc.BondRefunded = true
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}
		if err := s.treasury.Credit(ctx, mc.Creator, mc.Bond); err != nil {
			// The refund is already recorded; park the value for the admin
			// sweep rather than double-spending on retry.
			mc.AccumulatedFees += mc.Bond
			s.logger.ErrorContext(ctx, "bond refund transfer failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
			if perr := s.persistMarket(ctx, mc); perr != nil {
				return perr
			}
			agg.market = mc
			refunded = 0
			return nil
		}
		agg.market = mc
		refunded = mc.Bond

		s.audit(ctx, "bond_refunded", marketID, map[string]any{
			"creator": mc.Creator,
			"amount":  mc.Bond,
			"reason":  reason,
		})
		return nil
	})
	return refunded, err
}
