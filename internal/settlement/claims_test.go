package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

func TestClaimWinnings_BeforeSettlement(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	_, err := f.svc.ClaimWinnings(context.Background(), m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrNotResolved)
}

func TestClaimWinnings_WinnerPaidOnce(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))
	f.finalizeVia(t, m, domain.Outcome1)

	want, err := f.svc.CalculatePayout(ctx, m.ID, "alice")
	require.NoError(t, err)
	require.Positive(t, want)

	res, err := f.svc.ClaimWinnings(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, res.Amount)
	assert.False(t, res.Parked)
	assert.Equal(t, want, f.treasury.Balance("alice"))

	// A claimed position pays nothing on recalculation and rejects a
	// second claim outright.
	p, err := f.svc.CalculatePayout(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Zero(t, p)

	_, err = f.svc.ClaimWinnings(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.Equal(t, want, f.treasury.Balance("alice"))
}

func TestClaimWinnings_LoserHasNothing(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))
	f.finalizeVia(t, m, domain.Outcome1)

	_, err := f.svc.ClaimWinnings(ctx, m.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	_, err = f.svc.ClaimWinnings(ctx, m.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestClaimWinnings_CancelledRefund(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	require.NoError(t, f.svc.AdminCancel(ctx, m.ID, acctAdmin, "void"))

	res, err := f.svc.ClaimWinnings(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, tokens(1), res.Amount)
	assert.Equal(t, tokens(1), f.treasury.Balance("alice"))
}

func TestClaimWinnings_TransferFailureParks(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))
	f.finalizeVia(t, m, domain.Outcome1)

	want, err := f.svc.CalculatePayout(ctx, m.ID, "alice")
	require.NoError(t, err)

	f.treasury.SetFail(true)
	res, err := f.svc.ClaimWinnings(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.True(t, res.Parked)
	assert.Equal(t, want, res.Amount)
	assert.Zero(t, f.treasury.Balance("alice"))

	// The claim is committed even though the transfer failed.
	_, err = f.svc.ClaimWinnings(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// Retry fails while the treasury is down, succeeds once it recovers,
	// and pays exactly once.
	_, err = f.svc.RetryUnclaimed(ctx, m.ID, "alice")
	assert.Error(t, err)

	f.treasury.SetFail(false)
	paid, err := f.svc.RetryUnclaimed(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, paid)
	assert.Equal(t, want, f.treasury.Balance("alice"))

	_, err = f.svc.RetryUnclaimed(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestWithdrawAccumulatedFees(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(10))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(10))
	f.payee.SetFail(true)
	f.finalizeVia(t, m, domain.Outcome1)

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	require.Positive(t, got.AccumulatedFees)

	_, err = f.svc.WithdrawAccumulatedFees(ctx, m.ID, "rando")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	amount, err := f.svc.WithdrawAccumulatedFees(ctx, m.ID, acctAdmin)
	require.NoError(t, err)
	assert.Equal(t, got.AccumulatedFees, amount)
	assert.Equal(t, amount, f.treasury.Balance(acctAdmin))

	// The ledger is zeroed; a second sweep finds nothing.
	_, err = f.svc.WithdrawAccumulatedFees(ctx, m.ID, acctAdmin)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestWithdrawAccumulatedFees_RollbackOnFailure(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(10))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(10))
	f.payee.SetFail(true)
	f.finalizeVia(t, m, domain.Outcome1)

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	parked := got.AccumulatedFees

	f.treasury.SetFail(true)
	_, err = f.svc.WithdrawAccumulatedFees(ctx, m.ID, acctAdmin)
	require.Error(t, err)

	got, err = f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, parked, got.AccumulatedFees)
}

func TestEmergencyWithdraw_TooEarly(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.clock.Set(m.Deadline.Add(89 * 24 * time.Hour))

	_, err := f.svc.EmergencyWithdraw(ctx, m.ID, acctAdmin)
	assert.ErrorIs(t, err, domain.ErrEmergencyTooEarly)
}

func TestEmergencyWithdraw_SweepsAbandonedMarket(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))
	f.clock.Set(m.Deadline.Add(90 * 24 * time.Hour))

	_, err := f.svc.EmergencyWithdraw(ctx, m.ID, "rando")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	amount, err := f.svc.EmergencyWithdraw(ctx, m.ID, acctAdmin)
	require.NoError(t, err)
	// The whole pool plus the never-refunded creator bond.
	assert.Equal(t, tokens(1.2)+m.Bond, amount)
	assert.Equal(t, amount, f.treasury.Balance(acctAdmin))

	// The escrow is empty: a straggler cannot be paid from thin air.
	require.NoError(t, f.svc.AdminCancel(ctx, m.ID, acctAdmin, "post-sweep"))
	_, err = f.svc.ClaimWinnings(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestEmergencyWithdraw_RollbackOnFailure(t *testing.T) {
	f := newFixture(t)
	m := f.activeMarket(t)
	ctx := context.Background()

	f.bet(t, m.ID, "alice", domain.Outcome1, tokens(1))
	f.bet(t, m.ID, "bob", domain.Outcome2, tokens(0.2))
	f.clock.Set(m.Deadline.Add(90 * 24 * time.Hour))

	f.treasury.SetFail(true)
	_, err := f.svc.EmergencyWithdraw(ctx, m.ID, acctAdmin)
	require.Error(t, err)
	assert.Zero(t, f.treasury.Balance(acctAdmin))

	// The escrow is untouched, both in memory and at rest: nothing is
	// marked swept while the admin received nothing.
	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.BondRefunded)
	assert.Zero(t, got.ClaimedTotal)

	stored, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, stored.BondRefunded)
	assert.Zero(t, stored.ClaimedTotal)

	// Once the treasury recovers, the sweep pays out in full.
	f.treasury.SetFail(false)
	amount, err := f.svc.EmergencyWithdraw(ctx, m.ID, acctAdmin)
	require.NoError(t, err)
	assert.Equal(t, tokens(1.2)+m.Bond, amount)
	assert.Equal(t, amount, f.treasury.Balance(acctAdmin))
}
