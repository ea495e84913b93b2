package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/inboundfee/lncfg"
	"github.com/lightningnetwork/inboundfee/routing"
	"github.com/urfave/cli"
)

var (
	defaultConfigDir  = btcutil.AppDataDir("feecli", false)
	defaultConfigFile = filepath.Join(
		defaultConfigDir, lncfg.DefaultConfigFilename,
	)

	// cliLog is the logger for the command line tool itself.
	cliLog = btclog.Disabled
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[feecli] %v\n", err)
	os.Exit(1)
}

// actionDecorator loads the config and sets up logging before running the
// command.
func actionDecorator(f func(*cli.Context, *lncfg.Config) error) func(
	*cli.Context) error {

	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		setupLogging(cfg)

		return f(c, cfg)
	}
}

// loadConfig reads the config file, which only has to exist if a path was set
// on the command line, and applies the debug level flag on top of it.
func loadConfig(c *cli.Context) (*lncfg.Config, error) {
	path := c.GlobalString("configfile")
	cfg, err := lncfg.LoadConfig(path, c.GlobalIsSet("configfile"))
	if err != nil {
		return nil, err
	}

	if c.GlobalIsSet("debuglevel") {
		cfg.DebugLevel = c.GlobalString("debuglevel")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// setupLogging writes the logs of all subsystems to stderr at the configured
// level.
func setupLogging(cfg *lncfg.Config) {
	backend := btclog.NewBackend(os.Stderr)

	cliLog = backend.Logger("FCLI")
	cliLog.SetLevel(cfg.LogLevel())

	routingLog := backend.Logger(routing.Subsystem)
	routingLog.SetLevel(cfg.LogLevel())
	routing.UseLogger(routingLog)
}

// newApp creates the command line app with its global flags and commands.
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "feecli"
	app.Usage = "relate inbound and outbound amounts of a forwarding " +
		"channel pair"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "configfile",
			Value: defaultConfigFile,
			Usage: "The path to the config file holding default " +
				"fee parameters.",
		},
		cli.StringFlag{
			Name: "debuglevel",
			Usage: "Logging level for all subsystems {trace, " +
				"debug, info, warn, error, critical, off}",
		},
	}
	app.Commands = []cli.Command{
		inboundCommand,
		outboundCommand,
		coefficientsCommand,
		roundTripCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
