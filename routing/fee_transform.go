package routing

import (
	"fmt"
	"math/big"

	"github.com/lightningnetwork/inboundfee/lnwire"
	"github.com/shopspring/decimal"
)

// inverseDivisionPrecision is the number of decimal places kept when an
// inbound amount is divided by the fee multiplier.
const inverseDivisionPrecision = 24

var one = decimal.NewFromInt(1)

// FeeTransform relates the amount a node forwards over its outbound channel to
// the amount it needs to receive over the inbound channel to cover both the
// outbound fee and the inbound fee (or discount) of that channel pair.
//
// Ignoring the floor described below, the relationship is linear:
//
//	inbound = m * outbound + n
//
// where the inbound rate compounds on the outbound fee:
//
//	m = 1 + rateOut * (1 + rateIn) + rateIn
//	n = baseOut * (1 + rateIn) + baseIn
//
// Inbound discounts can take the linear relationship below the outbound
// amount, so the inbound amount is floored at the outbound amount.
//
// All arithmetic is performed on exact decimals: every coefficient derived from
// integer ppm rates has a finite decimal expansion, so the forward direction is
// exact. A FeeTransform is immutable and safe for concurrent use.
type FeeTransform struct {
	params FeeParams

	m decimal.Decimal
	n decimal.Decimal
}

// NewFeeTransform derives the coefficients for the fee pair provided. No
// validation is performed on the parameters, see FeeParams.Validate.
func NewFeeTransform(feeRateOut, baseOut, feeRateIn,
	baseIn int64) *FeeTransform {

	rateOut := ppmToDecimal(feeRateOut)
	rateIn := ppmToDecimal(feeRateIn)

	// The inbound rate applies to the amount that already includes the
	// outbound fee, so both the outbound rate and base are scaled by it.
	inboundFactor := one.Add(rateIn)

	return &FeeTransform{
		params: FeeParams{
			FeeRateOut: feeRateOut,
			BaseOut:    baseOut,
			FeeRateIn:  feeRateIn,
			BaseIn:     baseIn,
		},
		m: one.Add(rateOut.Mul(inboundFactor)).Add(rateIn),
		n: decimal.NewFromInt(baseOut).Mul(inboundFactor).Add(
			decimal.NewFromInt(baseIn),
		),
	}
}

// ppmToDecimal converts a parts per million rate to its exact fractional
// value.
func ppmToDecimal(rate int64) decimal.Decimal {
	return decimal.New(rate, -6)
}

// Params returns the fee parameters the transform was derived from.
func (f *FeeTransform) Params() FeeParams {
	return f.params
}

// Coefficients returns the multiplier m and offset n of the linear
// relationship between outbound and inbound amounts.
func (f *FeeTransform) Coefficients() (decimal.Decimal, decimal.Decimal) {
	return f.m, f.n
}

// uncapped evaluates the linear relationship without the outbound floor.
func (f *FeeTransform) uncapped(amt decimal.Decimal) decimal.Decimal {
	return f.m.Mul(amt).Add(f.n)
}

// InboundFromOutbound returns the amount that must be received over the
// inbound channel to forward amt over the outbound channel. This is the
// direction in which routes are built, starting from the receiver. The result
// is never less than amt and keeps fractional msat precision.
func (f *FeeTransform) InboundFromOutbound(
	amt decimal.Decimal) (decimal.Decimal, error) {

	if amt.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: outbound %v",
			ErrNegativeAmount, amt)
	}

	inbound := f.uncapped(amt)
	if inbound.LessThan(amt) {
		return amt, nil
	}

	return inbound, nil
}

// OutboundFromInbound is the inverse of InboundFromOutbound: it returns the
// amount that is forwarded over the outbound channel when amt is received
// over the inbound channel. The result is never more than amt.
func (f *FeeTransform) OutboundFromInbound(
	amt decimal.Decimal) (decimal.Decimal, error) {

	if !f.m.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %v",
			ErrNonInvertibleFee, f.m)
	}

	if amt.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: inbound %v",
			ErrNegativeAmount, amt)
	}

	// The forward floor is engaged exactly where the linear relationship
	// does not exceed the amount itself. As the forward relationship is
	// monotonic, evaluating the same condition at the inbound amount
	// selects the branch the amount came from.
	if !f.uncapped(amt).GreaterThan(amt) {
		return amt, nil
	}

	return amt.Sub(f.n).DivRound(f.m, inverseDivisionPrecision), nil
}

// InboundFromOutboundMsat is InboundFromOutbound for whole msat amounts. The
// inbound amount is rounded with RoundMsat.
func (f *FeeTransform) InboundFromOutboundMsat(
	amt lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error) {

	inbound, err := f.InboundFromOutbound(MsatToDecimal(amt))
	if err != nil {
		return 0, err
	}

	return RoundMsat(inbound)
}

// OutboundFromInboundMsat is OutboundFromInbound for whole msat amounts. The
// outbound amount is rounded with RoundMsat.
//
// Note that rounding the inbound amount to whole msat before inverting can
// move the result by more than half an msat when m < 1, so the exact decimal
// methods should be used where the round trip needs to hold.
func (f *FeeTransform) OutboundFromInboundMsat(
	amt lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error) {

	outbound, err := f.OutboundFromInbound(MsatToDecimal(amt))
	if err != nil {
		return 0, err
	}

	return RoundMsat(outbound)
}

// MsatToDecimal converts a msat amount to a decimal.
func MsatToDecimal(amt lnwire.MilliSatoshi) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(amt)), 0)
}

// RoundMsat rounds a fractional msat amount to the nearest whole msat, with
// halves rounded to even. An error is returned if the rounded amount is
// negative or does not fit in a MilliSatoshi.
func RoundMsat(amt decimal.Decimal) (lnwire.MilliSatoshi, error) {
	rounded := amt.RoundBank(0)
	if rounded.IsNegative() {
		return 0, fmt.Errorf("%w: %v", ErrNegativeAmount, amt)
	}

	intAmt := rounded.BigInt()
	if !intAmt.IsUint64() {
		return 0, fmt.Errorf("%w: %v", ErrAmountOverflow, amt)
	}

	return lnwire.MilliSatoshi(intAmt.Uint64()), nil
}
