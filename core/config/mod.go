// Package config loads the settings of the agent.
//
// The settings are read from an optional YAML file and can then be overridden
// by environment variables prefixed with SHIPAGENT_. Unset values keep their
// default.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.dedis.ch/shipagency/core/dues"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of the environment variables.
const EnvPrefix = "SHIPAGENT_"

// Config is the settings of the agent.
type Config struct {
	// Ledger is the address of the ledger gateway.
	Ledger string `yaml:"ledger" env:"LEDGER"`

	// Key is the path to the private key of the user.
	Key string `yaml:"key" env:"KEY"`

	// Journal is the path to the journal of the operations. The journal is
	// disabled when empty.
	Journal string `yaml:"journal" env:"JOURNAL"`

	// Metrics is the listening address of the prometheus exporter. The
	// exporter is disabled when empty.
	Metrics string `yaml:"metrics" env:"METRICS"`

	Timeouts Timeouts `yaml:"timeouts"`

	// PollRate is the number of receipt queries per second while waiting for a
	// confirmation.
	PollRate float64 `yaml:"poll_rate" env:"POLL_RATE"`

	Dues DuesRates `yaml:"dues"`
}

// Timeouts are the bounds of the calls to the ledger.
type Timeouts struct {
	RPC          time.Duration `yaml:"rpc" env:"RPC_TIMEOUT"`
	Confirmation time.Duration `yaml:"confirmation" env:"CONFIRMATION_TIMEOUT"`
}

// DuesRates are the rates of the dues as decimal strings.
type DuesRates struct {
	RateLight   string `yaml:"rate_light" env:"RATE_LIGHT"`
	RateSalvage string `yaml:"rate_salvage" env:"RATE_SALVAGE"`
	Scale       uint64 `yaml:"scale" env:"DUES_SCALE"`
}

// Default returns the default settings.
func Default() Config {
	return Config{
		Ledger:  "127.0.0.1:2000",
		Key:     "private.key",
		Journal: "",
		Timeouts: Timeouts{
			RPC:          10 * time.Second,
			Confirmation: 2 * time.Minute,
		},
		PollRate: 4,
		Dues: DuesRates{
			RateLight:   dues.RateLight,
			RateSalvage: dues.RateSalvage,
			Scale:       dues.Scale,
		},
	}
}

// Rates returns the rates for the dues calculator.
func (c Config) Rates() dues.Rates {
	return dues.Rates{
		Light:   c.Dues.RateLight,
		Salvage: c.Dues.RateSalvage,
		Scale:   c.Dues.Scale,
	}
}

// Load reads the file if the path is not empty, then applies the environment.
func Load(path string) (Config, error) {
	return load(path, env.ToMap(os.Environ()))
}

func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, xerrors.Errorf("failed to read config file: %v", err)
		}

		err = yaml.UnmarshalStrict(data, &cfg)
		if err != nil {
			return cfg, xerrors.Errorf("failed to unmarshal config: %v", err)
		}
	}

	err := applyEnv(&cfg, environ)
	if err != nil {
		return cfg, xerrors.Errorf("environment: %v", err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

// Validate returns an error if a setting is out of range.
func (c Config) Validate() error {
	if c.Timeouts.RPC <= 0 {
		return xerrors.Errorf("rpc timeout must be positive")
	}

	if c.Timeouts.Confirmation <= 0 {
		return xerrors.Errorf("confirmation timeout must be positive")
	}

	if c.PollRate <= 0 {
		return xerrors.Errorf("poll rate must be positive")
	}

	_, err := dues.NewCalculatorWithRates(c.Rates())
	if err != nil {
		return xerrors.Errorf("dues: %v", err)
	}

	return nil
}

func applyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}

	return env.ParseWithOptions(cfg, opts)
}
