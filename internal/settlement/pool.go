package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// impliedOdds returns the odds pair for a market: for each outcome, the
// pool staked on the other side relative to the pool on that outcome, in
// bps. An empty pool on an outcome reports zero odds for it.
func impliedOdds(m *domain.Market) domain.OddsPair {
	return domain.OddsPair{
		Outcome1Bps: oddsFor(m.Pool2, m.Pool1),
		Outcome2Bps: oddsFor(m.Pool1, m.Pool2),
	}
}

func oddsFor(opposite, own int64) int64 {
	if own == 0 {
		return 0
	}
	return opposite * domain.BpsDenominator / own
}

// PlaceBetResult reports the admitted bet and the post-admission odds.
type PlaceBetResult struct {
	Bet  domain.Bet
	Odds domain.OddsPair
}

// PlaceBet admits a stake into the market's pool. Admission enforces, in
// order: transaction-deadline staleness, ACTIVE state, bet size bounds, the
// whale cap (20% of the current pool, first bet exempt), and the caller's
// slippage floor on the implied odds after hypothetical admission. On
// success the stake is added to the chosen outcome's pool and the bet
// record is upserted, accumulating with any prior stake by the same
// account.
func (s *Service) PlaceBet(
	ctx context.Context,
	marketID, account string,
	outcome domain.Outcome,
	amount int64,
	minAcceptableOddsBps int64,
	txDeadline time.Time,
) (PlaceBetResult, error) {
	var res PlaceBetResult
	err := s.withMarket(ctx, marketID, func(agg *aggregate) error {
		now := s.clock.Now()
		m := agg.market

		if !txDeadline.IsZero() && now.After(txDeadline) {
			return fmt.Errorf("settlement: bet on %s: %w", marketID, domain.ErrDeadlineExpired)
		}
		if m.State != domain.MarketStateActive {
			return fmt.Errorf("settlement: bet on %s in state %s: %w", marketID, m.State, domain.ErrMarketNotActive)
		}
		if !outcome.Valid() {
			return fmt.Errorf("settlement: bet on %s: outcome %d: %w", marketID, outcome, domain.ErrInvalidOutcome)
		}
		if amount <= 0 {
			return fmt.Errorf("settlement: bet on %s: %w", marketID, domain.ErrInvalidAmount)
		}
		if amount < s.params.MinimumBet {
			return fmt.Errorf("settlement: bet %d < %d: %w", amount, s.params.MinimumBet, domain.ErrBetTooSmall)
		}
		if s.params.MaximumBet > 0 && amount > s.params.MaximumBet {
			return fmt.Errorf("settlement: bet %d > %d: %w", amount, s.params.MaximumBet, domain.ErrBetTooLarge)
		}

		// Whale cap: after the first bet, one stake may not exceed the
		// configured share of the current pool.
		if m.TotalPool > 0 {
			maxStake := m.TotalPool * s.params.WhaleCapBps / domain.BpsDenominator
			if amount > maxStake {
				return fmt.Errorf("settlement: bet %d > cap %d: %w", amount, maxStake, domain.ErrWhaleCap)
			}
		}

		// Slippage floor: implied odds for the chosen outcome after
		// hypothetically admitting this stake.
		newOdds := oddsFor(m.Pool(outcome.Opposite()), m.Pool(outcome)+amount)
		if newOdds < minAcceptableOddsBps {
			return fmt.Errorf("settlement: odds %d < min %d: %w", newOdds, minAcceptableOddsBps, domain.ErrSlippage)
		}

		prev, hasPrev := agg.bets[account]
		if hasPrev && prev.Outcome != outcome {
			// One active record per (account, market); switching sides
			// would require netting semantics the pool does not support.
			return fmt.Errorf("settlement: account %s already staked outcome %d: %w", account, prev.Outcome, domain.ErrAlreadyExists)
		}

		bet := domain.Bet{
			MarketID: marketID,
			Account:  account,
			Outcome:  outcome,
			Amount:   amount,
			PlacedAt: now,
		}
		if hasPrev {
			bet.Amount = prev.Amount + amount
			bet.PlacedAt = prev.PlacedAt
		}
		bet.UpdatedAt = now

		mc := m.Clone()
		mc.AddToPool(outcome, amount)

		if err := s.stores.Bets.Upsert(ctx, bet); err != nil {
			return fmt.Errorf("settlement: persist bet %s/%s: %w", marketID, account, err)
		}
		if err := s.persistMarket(ctx, mc); err != nil {
			return err
		}

		agg.market = mc
		agg.bets[account] = &bet

		res = PlaceBetResult{Bet: bet, Odds: impliedOdds(mc)}

		s.audit(ctx, "bet_placed", marketID, map[string]any{
			"account": account,
			"outcome": int(outcome),
			"amount":  amount,
			"total":   mc.TotalPool,
		})
		s.cacheOdds(ctx, mc)
		s.publish(ctx, ChannelBet, eventBetPlaced, mc, map[string]any{
			"account": account,
			"outcome": int(outcome),
			"amount":  amount,
			"odds":    res.Odds,
		})
		return nil
	})
	return res, err
}

// payout computes the amount owed to a bet under the market's final result.
// Cancelled markets refund the full stake with no fee. Winners split
// (totalPool - fee) proportionally to stake; integer division truncates,
// leaving at most one indivisible unit of rounding dust in the pool.
func payout(m *domain.Market, b domain.Bet) int64 {
	switch m.Result {
	case domain.ResultCancelled:
		return b.Amount
	case domain.ResultOutcome1, domain.ResultOutcome2:
		win := m.Result.WinningOutcome()
		if b.Outcome != win || b.Amount == 0 {
			return 0
		}
		poolWin := m.Pool(win)
		if poolWin == 0 {
			return 0
		}
		distributable := m.TotalPool - m.SettledFee
		// stake * distributable may exceed int64; go through big.Int.
		p := new(big.Int).Mul(big.NewInt(b.Amount), big.NewInt(distributable))
		p.Quo(p, big.NewInt(poolWin))
		return p.Int64()
	default:
		return 0
	}
}
