package domain

import "errors"

// Sentinel errors for the settlement core. Handlers classify these with
// Kind to choose an HTTP status; everything is synchronous and
// all-or-nothing, so a returned error always means zero effect.
var (
	// Validation errors: malformed input, out-of-range parameters.
	ErrBondTooLow       = errors.New("bond below minimum")
	ErrBondTooHigh      = errors.New("bond above maximum")
	ErrVoluntaryTooHigh = errors.New("voluntary fee above maximum")
	ErrZeroFeeTotal     = errors.New("cannot split zero fee")
	ErrInvalidOutcome   = errors.New("invalid outcome")
	ErrBetTooSmall      = errors.New("bet below minimum")
	ErrBetTooLarge      = errors.New("bet above maximum")
	ErrInvalidAmount    = errors.New("amount must be positive")

	// Authorization errors.
	ErrUnauthorized = errors.New("unauthorized")

	// State errors: operation invalid for the current lifecycle state.
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyDecided    = errors.New("market already decided")
	ErrMarketNotActive   = errors.New("market not active")
	ErrTooEarly          = errors.New("cannot resolve before deadline")
	ErrAlreadyResolved   = errors.New("market already resolved")
	ErrNotResolved       = errors.New("market not resolved")
	ErrNotResolving      = errors.New("market not awaiting resolution")
	ErrDisputeWindowOver = errors.New("dispute window closed")
	ErrDisputeWindowOpen = errors.New("dispute window still open")
	ErrDisputeActive     = errors.New("dispute already active")
	ErrNoActiveDispute   = errors.New("no active dispute")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrEmergencyTooEarly = errors.New("emergency window not reached")
	ErrNotApproved       = errors.New("market not approved")

	// Economic-safety errors: caller adjusts parameters and retries.
	ErrWhaleCap        = errors.New("bet exceeds whale cap")
	ErrSlippage        = errors.New("odds below minimum acceptable")
	ErrDeadlineExpired = errors.New("transaction deadline expired")
	ErrDisputeBondLow  = errors.New("dispute bond below minimum")

	// Infrastructure errors.
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
)

// ErrorKind buckets sentinel errors into the settlement error taxonomy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuthorization
	KindState
	KindEconomic
	KindNotFound
)

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{
		ErrBondTooLow, ErrBondTooHigh, ErrVoluntaryTooHigh, ErrZeroFeeTotal,
		ErrInvalidOutcome, ErrBetTooSmall, ErrBetTooLarge, ErrInvalidAmount,
	}},
	{KindAuthorization, []error{ErrUnauthorized}},
	{KindState, []error{
		ErrAlreadyExists, ErrAlreadyDecided, ErrMarketNotActive, ErrTooEarly,
		ErrAlreadyResolved, ErrNotResolved, ErrNotResolving,
		ErrDisputeWindowOver, ErrDisputeWindowOpen, ErrDisputeActive,
		ErrNoActiveDispute,
		ErrAlreadyClaimed, ErrNothingToClaim, ErrEmergencyTooEarly,
		ErrNotApproved,
	}},
	{KindEconomic, []error{
		ErrWhaleCap, ErrSlippage, ErrDeadlineExpired, ErrDisputeBondLow,
	}},
	{KindNotFound, []error{ErrNotFound}},
}

// Kind classifies err into the taxonomy. Unrecognized errors map to
// KindUnknown.
func Kind(err error) ErrorKind {
	for _, row := range kindTable {
		for _, sentinel := range row.errs {
			if errors.Is(err, sentinel) {
				return row.kind
			}
		}
	}
	return KindUnknown
}
