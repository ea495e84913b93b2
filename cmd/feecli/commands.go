package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lightningnetwork/inboundfee/lncfg"
	"github.com/lightningnetwork/inboundfee/routing"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli"
)

var (
	errAmountRequired = errors.New("amt required")

	errIntegerAmountRequired = errors.New("amt must be a whole number " +
		"of msat")

	feeFlags = []cli.Flag{
		cli.Int64Flag{
			Name: "feerate-out",
			Usage: "the fee rate in ppm of the outgoing channel, " +
				"overrides the config file",
		},
		cli.Int64Flag{
			Name: "base-out",
			Usage: "the base fee in msat of the outgoing channel, " +
				"overrides the config file",
		},
		cli.Int64Flag{
			Name: "feerate-in",
			Usage: "the inbound fee rate in ppm of the incoming " +
				"channel, overrides the config file",
		},
		cli.Int64Flag{
			Name: "base-in",
			Usage: "the inbound base fee in msat of the incoming " +
				"channel, overrides the config file",
		},
	}

	amtFlag = cli.StringFlag{
		Name:  "amt",
		Usage: "the amount in msat, may be fractional",
	}
)

var inboundCommand = cli.Command{
	Name:      "inbound",
	Usage:     "Compute the inbound amount required to forward an amount.",
	ArgsUsage: "amt",
	Flags:     append([]cli.Flag{amtFlag}, feeFlags...),
	Action:    actionDecorator(inbound),
}

func inbound(ctx *cli.Context, cfg *lncfg.Config) error {
	transform, amt, err := parseTransformArgs(ctx, cfg)
	if err != nil {
		return err
	}

	inboundAmt, err := transform.InboundFromOutbound(amt)
	if err != nil {
		return err
	}

	return printAmounts(ctx.App.Writer, transform, amt, inboundAmt)
}

var outboundCommand = cli.Command{
	Name:      "outbound",
	Usage:     "Compute the amount forwarded for an inbound amount.",
	ArgsUsage: "amt",
	Flags:     append([]cli.Flag{amtFlag}, feeFlags...),
	Action:    actionDecorator(outbound),
}

func outbound(ctx *cli.Context, cfg *lncfg.Config) error {
	transform, amt, err := parseTransformArgs(ctx, cfg)
	if err != nil {
		return err
	}

	outboundAmt, err := transform.OutboundFromInbound(amt)
	if err != nil {
		return err
	}

	return printAmounts(ctx.App.Writer, transform, outboundAmt, amt)
}

var coefficientsCommand = cli.Command{
	Name:   "coefficients",
	Usage:  "Show the multiplier and offset derived from a fee pair.",
	Flags:  feeFlags,
	Action: actionDecorator(coefficients),
}

func coefficients(ctx *cli.Context, cfg *lncfg.Config) error {
	params, err := feeParams(ctx, cfg)
	if err != nil {
		return err
	}

	m, n := params.Transform().Coefficients()

	t := table.NewWriter()
	t.SetOutputMirror(ctx.App.Writer)
	t.AppendHeader(table.Row{"Fees", "m", "n (msat)"})
	t.AppendRow(table.Row{params, m, n})
	t.Render()

	return nil
}

var roundTripCommand = cli.Command{
	Name: "roundtrip",
	Usage: "Check that an outbound amount is recovered from its " +
		"inbound amount.",
	ArgsUsage: "amt",
	Flags:     append([]cli.Flag{amtFlag}, feeFlags...),
	Action:    actionDecorator(roundTrip),
}

func roundTrip(ctx *cli.Context, cfg *lncfg.Config) error {
	transform, amt, err := parseTransformArgs(ctx, cfg)
	if err != nil {
		return err
	}

	// Only whole msat amounts can be recovered by rounding.
	if !amt.IsInteger() {
		return fmt.Errorf("%w: %v", errIntegerAmountRequired, amt)
	}

	inboundAmt, err := transform.InboundFromOutbound(amt)
	if err != nil {
		return err
	}

	recovered, err := transform.OutboundFromInbound(inboundAmt)
	if err != nil {
		return err
	}

	rounded, err := routing.RoundMsat(recovered)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(ctx.App.Writer)
	t.AppendHeader(table.Row{
		"Outbound", "Inbound", "Recovered", "Rounded",
	})
	t.AppendRow(table.Row{amt, inboundAmt, recovered, uint64(rounded)})
	t.Render()

	if !routing.MsatToDecimal(rounded).Equal(amt) {
		return fmt.Errorf("outbound amount %v recovered as %v", amt,
			rounded)
	}

	return nil
}

// parseTransformArgs returns the fee transform for the configured fees and
// the amount passed either as a flag or the first argument.
func parseTransformArgs(ctx *cli.Context, cfg *lncfg.Config) (
	*routing.FeeTransform, decimal.Decimal, error) {

	params, err := feeParams(ctx, cfg)
	if err != nil {
		return nil, decimal.Zero, err
	}

	amtStr := ctx.String("amt")
	if amtStr == "" {
		amtStr = ctx.Args().First()
	}

	amt, err := parseAmount(amtStr)
	if err != nil {
		return nil, decimal.Zero, err
	}

	return params.Transform(), amt, nil
}

// parseAmount parses a non-negative msat amount.
func parseAmount(amtStr string) (decimal.Decimal, error) {
	if amtStr == "" {
		return decimal.Zero, errAmountRequired
	}

	amt, err := decimal.NewFromString(amtStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amt: %w", err)
	}

	if amt.IsNegative() {
		return decimal.Zero, fmt.Errorf("amt: %w",
			routing.ErrNegativeAmount)
	}

	return amt, nil
}

// feeParams returns the fees from the config file with any fee flags set on
// the command line applied on top.
func feeParams(ctx *cli.Context, cfg *lncfg.Config) (routing.FeeParams,
	error) {

	fees := *cfg.Fees

	if ctx.IsSet("feerate-out") {
		fees.FeeRateOut = ctx.Int64("feerate-out")
	}
	if ctx.IsSet("base-out") {
		fees.BaseOut = ctx.Int64("base-out")
	}
	if ctx.IsSet("feerate-in") {
		fees.FeeRateIn = ctx.Int64("feerate-in")
	}
	if ctx.IsSet("base-in") {
		fees.BaseIn = ctx.Int64("base-in")
	}

	params := fees.Params()
	if err := params.Validate(); err != nil {
		return routing.FeeParams{}, err
	}

	cliLog.Debugf("Using fees: %v", params)

	return params, nil
}

// printAmounts renders the outbound and inbound amounts of a transform.
func printAmounts(w io.Writer, transform *routing.FeeTransform, outboundAmt,
	inboundAmt decimal.Decimal) error {

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Fees", "Outbound (msat)", "Inbound (msat)"})
	t.AppendRow(table.Row{transform.Params(), outboundAmt, inboundAmt})
	t.Render()

	return nil
}
