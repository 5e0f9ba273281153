package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

func TestPlaceBet_FirstBetExemptFromWhaleCap(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)

	// The first bet may be any size; there is no pool to cap against.
	res := f.bet(t, m.ID, "alice", domain.Outcome1, tokens(50))
	assert.Equal(t, tokens(50), res.Bet.Amount)
}

func TestPlaceBet_WhaleCapBoundary(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(0.05))

	// Exactly 20% of the pool is admitted.
	_, err := f.svc.PlaceBet(ctx, m.ID, "bob", domain.Outcome2, tokens(0.01), 0, time.Time{})
	require.NoError(t, err)

	// A hair over 20% of the new pool is rejected.
	pool := tokens(0.06)
	over := pool*2000/10000 + 5
	_, err = f.svc.PlaceBet(ctx, m.ID, "carol", domain.Outcome2, over, 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrWhaleCap)
}

func TestPlaceBet_StaleTransactionRejected(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	past := f.clock.Now().Add(-10 * time.Second)
	_, err := f.svc.PlaceBet(ctx, m.ID, "alice", domain.Outcome1, tokens(1), 0, past)
	assert.ErrorIs(t, err, domain.ErrDeadlineExpired)

	future := f.clock.Now().Add(10 * time.Minute)
	_, err = f.svc.PlaceBet(ctx, m.ID, "alice", domain.Outcome1, tokens(1), 0, future)
	assert.NoError(t, err)
}

func TestPlaceBet_RequiresActiveMarket(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)

	_, err := f.svc.PlaceBet(context.Background(), m.ID, "alice", domain.Outcome1, tokens(1), 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)
}

func TestPlaceBet_SlippageProtection(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	// Heavy imbalance toward outcome 1.
	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(10))

	// Betting on the crowded side with a high odds floor must fail: the
	// implied odds for outcome 1 after admission are near zero.
	_, err := f.svc.PlaceBet(ctx, m.ID, "bob", domain.Outcome1, tokens(1), 9000, time.Time{})
	assert.ErrorIs(t, err, domain.ErrSlippage)

	// The thin side clears the same floor easily.
	_, err = f.svc.PlaceBet(ctx, m.ID, "bob", domain.Outcome2, tokens(1), 9000, time.Time{})
	assert.NoError(t, err)
}

func TestPlaceBet_SizeBounds(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	_, err := f.svc.PlaceBet(ctx, m.ID, "alice", domain.Outcome1, tokens(0.001), 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrBetTooSmall)

	_, err = f.svc.PlaceBet(ctx, m.ID, "alice", domain.Outcome1, tokens(101), 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrBetTooLarge)
}

func TestPlaceBet_AccumulatesSameOutcome(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	res := f.bet(t, m.ID, "alice", domain.Outcome1, tokens(0.2))
	assert.Equal(t, tokens(1.2), res.Bet.Amount)

	got, err := f.svc.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, tokens(1.2), got.Pool1)
	assert.Equal(t, tokens(1.2), got.TotalPool)
}

func TestPlaceBet_SwitchingSidesRejected(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	_, err := f.svc.PlaceBet(context.Background(), m.ID, "alice", domain.Outcome2, tokens(0.1), 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestOdds_ReflectPoolBalance(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))

	odds, err := f.svc.Odds(context.Background(), m.ID)
	require.NoError(t, err)
	// Outcome 1 holds 1.0 against 0.2: 2000 bps of net winnings per unit.
	assert.Equal(t, int64(2000), odds.Outcome1Bps)
	assert.Equal(t, int64(50000), odds.Outcome2Bps)
}

func TestPayout_ConservationForWinners(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	// Build a pool with awkward amounts so rounding actually truncates.
	f.bet(t, m.ID, "w1", domain.Outcome1, tokens(0.07))
	f.bet(t, m.ID, "w2", domain.Outcome1, 11_117)
	f.bet(t, m.ID, "w3", domain.Outcome1, 13_331)
	f.bet(t, m.ID, "l1", domain.Outcome2, 17_773)

	f.finalizeVia(t, m, domain.Outcome1)

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ResultOutcome1, got.Result)

	var sum int64
	for _, acct := range []string{"w1", "w2", "w3"} {
		p, err := f.svc.CalculatePayout(ctx, m.ID, acct)
		require.NoError(t, err)
		sum += p
	}

	distributable := got.TotalPool - got.SettledFee
	assert.LessOrEqual(t, distributable-sum, int64(3), "rounding dust beyond one unit per winner")
	assert.GreaterOrEqual(t, distributable, sum, "winners paid more than the pool holds")
}

func TestPayout_LoserGetsZero(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))
	f.finalizeVia(t, m, domain.Outcome1)

	p, err := f.svc.CalculatePayout(context.Background(), m.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestPayout_CancelledRefundsExactly(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	// Everyone bets outcome 2; resolving outcome 1 cancels the market.
	stakes := map[string]int64{"a": tokens(0.02)}
	f.bet(t, m.ID, "a", domain.Outcome2, stakes["a"])
	for _, acct := range []string{"b", "c", "d"} {
		got, err := f.svc.GetMarket(ctx, m.ID)
		require.NoError(t, err)
		amt := got.TotalPool * 2000 / 10000
		f.bet(t, m.ID, acct, domain.Outcome2, amt)
		stakes[acct] = amt
	}

	f.resolve(t, m, domain.Outcome1)
	require.NoError(t, f.svc.AdminResolveMarket(ctx, m.ID, acctAdmin, domain.Outcome1, ""))

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultCancelled, got.Result)
	assert.Equal(t, domain.MarketStateCancelled, got.State)

	var sum int64
	for acct, stake := range stakes {
		p, err := f.svc.CalculatePayout(ctx, m.ID, acct)
		require.NoError(t, err)
		assert.Equal(t, stake, p, "account %s", acct)
		sum += p
	}
	assert.Equal(t, got.TotalPool, sum)
}
