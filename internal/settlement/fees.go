package settlement

import (
	"fmt"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// FeeParams configures the two independent fee tiers. Amounts are
// micro-tokens, rates are basis points (10000 = 100%).
type FeeParams struct {
	MinBond              int64
	MaxBond              int64
	MinBondFeeBps        int64
	MaxBondFeeBps        int64
	MaxVoluntary         int64
	MaxVoluntaryBonusBps int64
	MaxTradingFeeBps     int64
	VoluntaryTaxBps      int64
}

// FeeEngine is a pure fee-rate calculator and 3-way splitter. It holds no
// state beyond its configuration.
//
// The bond tier rewards larger refundable bonds with a narrow fee band; the
// voluntary tier lets a creator opt into a materially higher fee for a
// larger cut. The tiers are additive and validated independently, and their
// sum at both maxima equals MaxTradingFeeBps by construction.
type FeeEngine struct {
	p FeeParams
}

// NewFeeEngine creates a FeeEngine from the given parameters.
func NewFeeEngine(p FeeParams) *FeeEngine {
	return &FeeEngine{p: p}
}

// BondFee returns the bond-tier fee rate in bps, linearly interpolated over
// [MinBond, MaxBond]. Out-of-range bonds are rejected, never clamped.
func (e *FeeEngine) BondFee(bond int64) (int64, error) {
	if bond < e.p.MinBond {
		return 0, fmt.Errorf("fees: bond %d < %d: %w", bond, e.p.MinBond, domain.ErrBondTooLow)
	}
	if bond > e.p.MaxBond {
		return 0, fmt.Errorf("fees: bond %d > %d: %w", bond, e.p.MaxBond, domain.ErrBondTooHigh)
	}
	span := e.p.MaxBond - e.p.MinBond
	if span == 0 {
		return e.p.MinBondFeeBps, nil
	}
	return e.p.MinBondFeeBps +
		(bond-e.p.MinBond)*(e.p.MaxBondFeeBps-e.p.MinBondFeeBps)/span, nil
}

// VoluntaryBonus returns the voluntary-tier fee rate in bps for a voluntary
// fee amount, linearly interpolated over [0, MaxVoluntary].
func (e *FeeEngine) VoluntaryBonus(amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("fees: voluntary %d: %w", amount, domain.ErrInvalidAmount)
	}
	if amount > e.p.MaxVoluntary {
		return 0, fmt.Errorf("fees: voluntary %d > %d: %w", amount, e.p.MaxVoluntary, domain.ErrVoluntaryTooHigh)
	}
	if e.p.MaxVoluntary == 0 {
		return 0, nil
	}
	return amount * e.p.MaxVoluntaryBonusBps / e.p.MaxVoluntary, nil
}

// TradingFee returns the combined fee rate: bond tier plus voluntary tier.
// The sum never exceeds MaxTradingFeeBps because the tier maxima add up to
// exactly that cap.
func (e *FeeEngine) TradingFee(bond, voluntary int64) (int64, error) {
	bondBps, err := e.BondFee(bond)
	if err != nil {
		return 0, err
	}
	volBps, err := e.VoluntaryBonus(voluntary)
	if err != nil {
		return 0, err
	}
	total := bondBps + volBps
	if total > e.p.MaxTradingFeeBps {
		total = e.p.MaxTradingFeeBps
	}
	return total, nil
}

// ValidateDistribution checks that the 3-way fee distribution sums to
// exactly 10000 bps, naming the actual sum on failure.
func (e *FeeEngine) ValidateDistribution(platformBps, creatorBps, stakingBps int64) error {
	sum := platformBps + creatorBps + stakingBps
	if sum != domain.BpsDenominator {
		return fmt.Errorf("fees: distribution sums to %d, want %d", sum, domain.BpsDenominator)
	}
	return nil
}

// FeeSplit is the result of dividing a collected fee three ways. The
// staking share absorbs the division remainder so the parts always sum to
// the input exactly.
type FeeSplit struct {
	Platform int64
	Creator  int64
	Staking  int64
}

// SplitFee divides total proportionally between platform, creator and
// staking shares. The distribution must sum to 10000 bps and total must be
// positive.
func (e *FeeEngine) SplitFee(total, platformBps, creatorBps, stakingBps int64) (FeeSplit, error) {
	if total <= 0 {
		return FeeSplit{}, fmt.Errorf("fees: split %d: %w", total, domain.ErrZeroFeeTotal)
	}
	if err := e.ValidateDistribution(platformBps, creatorBps, stakingBps); err != nil {
		return FeeSplit{}, err
	}

	platform := total * platformBps / domain.BpsDenominator
	creator := total * creatorBps / domain.BpsDenominator
	return FeeSplit{
		Platform: platform,
		Creator:  creator,
		Staking:  total - platform - creator,
	}, nil
}

// VoluntaryFeeTax skims a flat cut off a voluntarily-paid fee amount and
// returns (tax, net).
func (e *FeeEngine) VoluntaryFeeTax(amount int64) (tax, net int64) {
	tax = amount * e.p.VoluntaryTaxBps / domain.BpsDenominator
	return tax, amount - tax
}
