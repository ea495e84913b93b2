package lncfg

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"
)

const (
	// DefaultConfigFilename is the default name of the fee config file.
	DefaultConfigFilename = "feecli.conf"

	defaultLogLevel = "info"
)

// Config holds the fee parameters and logging options that can be supplied
// through a config file.
type Config struct {
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off}"`

	Fees *Fees `group:"Fees" namespace:"fees"`
}

// DefaultConfig returns a config with no fees and the default log level.
func DefaultConfig() *Config {
	return &Config{
		DebugLevel: defaultLogLevel,
		Fees:       &Fees{},
	}
}

// LoadConfig reads the ini file at the path provided on top of the default
// config. A missing file is only an error if the path was set explicitly,
// which is signaled by required.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, cfg.Validate()
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, cfg.Validate()
		}

		return nil, err
	}

	parser := flags.NewParser(cfg, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file %v: %w",
			path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the log level and fees of the config.
func (c *Config) Validate() error {
	if _, ok := btclog.LevelFromString(c.DebugLevel); !ok {
		return fmt.Errorf("invalid debug level: %v", c.DebugLevel)
	}

	if err := c.Fees.Params().Validate(); err != nil {
		return fmt.Errorf("invalid fees: %w", err)
	}

	return nil
}

// LogLevel returns the parsed log level of the config, defaulting to info for
// configs that have not been validated.
func (c *Config) LogLevel() btclog.Level {
	level, ok := btclog.LevelFromString(c.DebugLevel)
	if !ok {
		return btclog.LevelInfo
	}

	return level
}
