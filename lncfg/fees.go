package lncfg

import "github.com/lightningnetwork/inboundfee/routing"

// Fees holds the outbound fee of the next channel and the inbound fee of the
// incoming channel for a single forwarding pair.
type Fees struct {
	FeeRateOut int64 `long:"feerate-out" description:"The proportional fee, in parts per million, charged on the outgoing channel."`
	BaseOut    int64 `long:"base-out" description:"The base fee, in msat, charged on the outgoing channel."`
	FeeRateIn  int64 `long:"feerate-in" description:"The proportional inbound fee, in parts per million, of the incoming channel. Negative values are discounts."`
	BaseIn     int64 `long:"base-in" description:"The inbound base fee, in msat, of the incoming channel. Negative values are discounts."`
}

// Params returns the configured fees as fee parameters. Bounds are checked by
// routing.FeeParams.Validate.
func (f *Fees) Params() routing.FeeParams {
	return routing.FeeParams{
		FeeRateOut: f.FeeRateOut,
		BaseOut:    f.BaseOut,
		FeeRateIn:  f.FeeRateIn,
		BaseIn:     f.BaseIn,
	}
}
