package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

func testFeeEngine() *FeeEngine {
	p := defaultParams()
	return NewFeeEngine(FeeParams{
		MinBond:              p.MinBond,
		MaxBond:              p.MaxBond,
		MinBondFeeBps:        p.MinBondFeeBps,
		MaxBondFeeBps:        p.MaxBondFeeBps,
		MaxVoluntary:         p.MaxVoluntary,
		MaxVoluntaryBonusBps: p.MaxVoluntaryBonusBps,
		MaxTradingFeeBps:     p.MaxTradingFeeBps,
		VoluntaryTaxBps:      p.VoluntaryTaxBps,
	})
}

func TestBondFee_Endpoints(t *testing.T) {
	e := testFeeEngine()

	fee, err := e.BondFee(tokens(10))
	require.NoError(t, err)
	assert.Equal(t, int64(50), fee)

	fee, err = e.BondFee(tokens(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(200), fee)
}

func TestBondFee_Midpoint(t *testing.T) {
	e := testFeeEngine()
	fee, err := e.BondFee(tokens(500))
	require.NoError(t, err)
	assert.InDelta(t, 124, fee, 1)
}

func TestBondFee_OutOfRange(t *testing.T) {
	e := testFeeEngine()

	_, err := e.BondFee(tokens(9))
	assert.ErrorIs(t, err, domain.ErrBondTooLow)

	_, err = e.BondFee(tokens(1001))
	assert.ErrorIs(t, err, domain.ErrBondTooHigh)
}

func TestBondFee_Monotonic(t *testing.T) {
	e := testFeeEngine()
	prev := int64(-1)
	for bond := tokens(10); bond <= tokens(1000); bond += tokens(33) {
		fee, err := e.BondFee(bond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fee, prev, "bond %d", bond)
		prev = fee
	}
}

func TestVoluntaryBonus(t *testing.T) {
	e := testFeeEngine()

	tests := []struct {
		name   string
		amount int64
		want   int64
	}{
		{"zero", 0, 0},
		{"max", tokens(1000), 800},
		{"half", tokens(500), 400},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.VoluntaryBonus(tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := e.VoluntaryBonus(tokens(1001))
	assert.ErrorIs(t, err, domain.ErrVoluntaryTooHigh)
}

func TestTradingFee_CapReachedAtTierMaxima(t *testing.T) {
	e := testFeeEngine()
	fee, err := e.TradingFee(tokens(1000), tokens(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), fee)
}

func TestValidateDistribution(t *testing.T) {
	e := testFeeEngine()

	assert.NoError(t, e.ValidateDistribution(3000, 4000, 3000))

	err := e.ValidateDistribution(3000, 3000, 3000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9000")
}

func TestSplitFee_Exact(t *testing.T) {
	e := testFeeEngine()

	split, err := e.SplitFee(tokens(1), 3000, 4000, 3000)
	require.NoError(t, err)
	assert.Equal(t, tokens(0.3), split.Platform)
	assert.Equal(t, tokens(0.4), split.Creator)
	assert.Equal(t, tokens(0.3), split.Staking)
	assert.Equal(t, tokens(1), split.Platform+split.Creator+split.Staking)
}

func TestSplitFee_RemainderGoesToStaking(t *testing.T) {
	e := testFeeEngine()

	// 7 units cannot divide evenly three ways; the parts must still sum
	// to the input exactly.
	split, err := e.SplitFee(7, 3000, 3000, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(7), split.Platform+split.Creator+split.Staking)
}

func TestSplitFee_ZeroTotal(t *testing.T) {
	e := testFeeEngine()
	_, err := e.SplitFee(0, 3000, 4000, 3000)
	assert.ErrorIs(t, err, domain.ErrZeroFeeTotal)
}

func TestVoluntaryFeeTax(t *testing.T) {
	e := testFeeEngine()
	tax, net := e.VoluntaryFeeTax(tokens(100))
	assert.Equal(t, tokens(10), tax)
	assert.Equal(t, tokens(90), net)
}
