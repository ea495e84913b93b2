package routing

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/inboundfee/lnwire"
)

var (
	// ErrNegativeOutboundFee is returned when the outbound leg of a fee
	// pair has a negative rate or base fee.
	ErrNegativeOutboundFee = errors.New("outbound fee must not be " +
		"negative")

	// ErrRateTooLarge is returned when a fee rate exceeds maxRatePpm in
	// either direction.
	ErrRateTooLarge = errors.New("fee rate exceeds maximum")

	// ErrNonInvertibleFee is returned when the multiplier derived from a
	// fee pair is not positive, so outbound amounts can't be recovered
	// from inbound ones.
	ErrNonInvertibleFee = errors.New("fee multiplier must be positive")

	// ErrNegativeAmount is returned when a negative amount is passed to a
	// fee transform.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrAmountOverflow is returned when an amount can't be represented
	// in milli-satoshis.
	ErrAmountOverflow = errors.New("amount overflows msat")
)

// FeeParams holds the fees that apply when a node forwards an htlc arriving
// over one channel (the inbound leg) onward over another (the outbound leg).
// Rates are expressed in parts per million and base fees in milli-satoshis.
type FeeParams struct {
	// FeeRateOut is the proportional fee of the outbound channel.
	FeeRateOut int64

	// BaseOut is the base fee of the outbound channel.
	BaseOut int64

	// FeeRateIn is the proportional inbound fee of the incoming channel.
	// A negative rate is a discount.
	FeeRateIn int64

	// BaseIn is the inbound base fee of the incoming channel. A negative
	// base fee is a discount.
	BaseIn int64
}

// NewFeeParams combines the advertised outbound fee of the next channel with
// the inbound fee of the incoming channel.
func NewFeeParams(outbound lnwire.OutboundFee, inbound lnwire.Fee) FeeParams {
	return FeeParams{
		FeeRateOut: int64(outbound.FeeRate),
		BaseOut:    int64(outbound.BaseFee),
		FeeRateIn:  int64(inbound.FeeRate),
		BaseIn:     int64(inbound.BaseFee),
	}
}

// Transform derives the fee transform for this set of parameters.
func (p FeeParams) Transform() *FeeTransform {
	return NewFeeTransform(p.FeeRateOut, p.BaseOut, p.FeeRateIn, p.BaseIn)
}

// Validate checks that the fee parameters describe a sensible fee pair. Fee
// transforms can be created for any set of parameters, this check is
// available for callers that want to reject nonsensical policies up front.
func (p FeeParams) Validate() error {
	if p.FeeRateOut < 0 || p.BaseOut < 0 {
		return fmt.Errorf("%w: rate=%v base=%v", ErrNegativeOutboundFee,
			p.FeeRateOut, p.BaseOut)
	}

	if p.FeeRateOut > maxRatePpm {
		return fmt.Errorf("%w: outbound rate %v", ErrRateTooLarge,
			p.FeeRateOut)
	}

	if p.FeeRateIn > maxRatePpm || p.FeeRateIn < -maxRatePpm {
		return fmt.Errorf("%w: inbound rate %v", ErrRateTooLarge,
			p.FeeRateIn)
	}

	if m, _ := p.Transform().Coefficients(); !m.IsPositive() {
		return fmt.Errorf("%w: got %v", ErrNonInvertibleFee, m)
	}

	return nil
}

// String returns a human readable version of the fee parameters.
func (p FeeParams) String() string {
	return fmt.Sprintf("out(rate=%v ppm, base=%v msat) in(rate=%v ppm, "+
		"base=%v msat)", p.FeeRateOut, p.BaseOut, p.FeeRateIn, p.BaseIn)
}
