package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

func TestCreateMarket_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := CreateMarketRequest{
		Creator:     acctCreator,
		Question:    "Will X happen?",
		Outcome1:    "YES",
		Outcome2:    "NO",
		Deadline:    f.clock.Now().Add(time.Hour),
		Bond:        tokens(10),
		PlatformBps: 3000,
		CreatorBps:  4000,
		StakingBps:  3000,
	}

	req := base
	req.Question = "  "
	_, err := f.svc.CreateMarket(ctx, req)
	assert.Error(t, err)

	req = base
	req.Outcome2 = ""
	_, err = f.svc.CreateMarket(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)

	req = base
	req.Deadline = f.clock.Now().Add(-time.Minute)
	_, err = f.svc.CreateMarket(ctx, req)
	assert.ErrorIs(t, err, domain.ErrDeadlineExpired)

	req = base
	req.Bond = tokens(5)
	_, err = f.svc.CreateMarket(ctx, req)
	assert.ErrorIs(t, err, domain.ErrBondTooLow)

	req = base
	req.PlatformBps = 5000
	_, err = f.svc.CreateMarket(ctx, req)
	assert.Error(t, err)
}

func TestCreateMarket_FreezesFeeSchedule(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.CreateMarket(context.Background(), CreateMarketRequest{
		Creator:     acctCreator,
		Question:    "Will X happen?",
		Outcome1:    "YES",
		Outcome2:    "NO",
		Deadline:    f.clock.Now().Add(time.Hour),
		Bond:        tokens(1000),
		Voluntary:   tokens(1000),
		PlatformBps: 3000,
		CreatorBps:  4000,
		StakingBps:  3000,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.MarketStateProposed, m.State)
	assert.Equal(t, int64(200), m.Fees.BondFeeBps)
	assert.Equal(t, int64(800), m.Fees.VoluntaryBps)
	// Bond and voluntary tiers both maxed: the sum hits the cap exactly.
	assert.Equal(t, int64(1000), m.Fees.TradingFeeBps)
	// The voluntary contribution is recorded net of the 10% tax.
	assert.Equal(t, tokens(900), m.Fees.VoluntaryAmount)
}

func TestApprove_AdminOnly(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)

	err := f.svc.Approve(context.Background(), m.ID, "rando")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestApprove_AlreadyDecided(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Approve(ctx, m.ID, acctAdmin))

	err := f.svc.Approve(ctx, m.ID, acctAdmin)
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)

	err = f.svc.Reject(ctx, m.ID, acctAdmin, "too late")
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestReject_ForfeitsBond(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Reject(ctx, m.ID, acctAdmin, "duplicate"))

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateRejected, got.State)
	assert.Equal(t, "duplicate", got.RejectReason)
	assert.True(t, got.BondRefunded)
	assert.Equal(t, m.Bond, f.payee.Received())

	// The forfeited bond is gone; a refund attempt yields nothing.
	refunded, err := f.svc.RefundBond(ctx, m.ID, acctCreator, "please")
	require.NoError(t, err)
	assert.Zero(t, refunded)
}

func TestActivate_RequiresApproved(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)

	err := f.svc.Activate(context.Background(), m.ID, acctAdmin)
	assert.ErrorIs(t, err, domain.ErrNotApproved)
}

func TestRefundBond_Flow(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	// Not decided yet: nothing to refund.
	_, err := f.svc.RefundBond(ctx, m.ID, acctCreator, "early")
	assert.ErrorIs(t, err, domain.ErrNotApproved)

	require.NoError(t, f.svc.Approve(ctx, m.ID, acctAdmin))

	// Approval alone returns nothing; the refund is an explicit claim.
	assert.Zero(t, f.treasury.Balance(acctCreator))

	refunded, err := f.svc.RefundBond(ctx, m.ID, acctCreator, "approved")
	require.NoError(t, err)
	assert.Equal(t, m.Bond, refunded)
	assert.Equal(t, m.Bond, f.treasury.Balance(acctCreator))

	// Idempotent: the second call reports zero and credits nothing.
	refunded, err = f.svc.RefundBond(ctx, m.ID, acctCreator, "again")
	require.NoError(t, err)
	assert.Zero(t, refunded)
	assert.Equal(t, m.Bond, f.treasury.Balance(acctCreator))
}

func TestRefundBond_Unauthorized(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Approve(ctx, m.ID, acctAdmin))
	_, err := f.svc.RefundBond(ctx, m.ID, "rando", "gimme")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefundBond_TransferFailureParksBond(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Approve(ctx, m.ID, acctAdmin))
	f.treasury.SetFail(true)

	refunded, err := f.svc.RefundBond(ctx, m.ID, acctCreator, "approved")
	require.NoError(t, err)
	assert.Zero(t, refunded)

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.BondRefunded)
	assert.Equal(t, m.Bond, got.AccumulatedFees)

	// The value is recoverable through the admin sweep once the treasury
	// is back.
	f.treasury.SetFail(false)
	swept, err := f.svc.WithdrawAccumulatedFees(ctx, m.ID, acctAdmin)
	require.NoError(t, err)
	assert.Equal(t, m.Bond, swept)
}
