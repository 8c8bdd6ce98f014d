package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/cache"
	"github.com/rustyeddy/stratlab/internal/logging"
	"github.com/rustyeddy/stratlab/optimize"
	"github.com/rustyeddy/stratlab/resample"
)

// Config is everything the stratlab commands read from a file. Sections
// omitted from the file keep their defaults.
type Config struct {
	Engine      backtest.Config            `json:"engine" yaml:"engine"`
	Strategy    StrategyConfig             `json:"strategy" yaml:"strategy"`
	MonteCarlo  resample.MonteCarloConfig  `json:"montecarlo" yaml:"montecarlo"`
	WalkForward resample.WalkForwardConfig `json:"walkforward" yaml:"walkforward"`
	Optimizer   OptimizerConfig            `json:"optimizer" yaml:"optimizer"`
	Journal     JournalConfig              `json:"journal" yaml:"journal"`
	Cache       CacheConfig                `json:"cache" yaml:"cache"`
	Logging     logging.Config             `json:"logging" yaml:"logging"`
}

type StrategyConfig struct {
	Name   string          `json:"name" yaml:"name"`
	Symbol string          `json:"symbol" yaml:"symbol"`
	Params backtest.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

type OptimizerConfig struct {
	optimize.Config `yaml:",inline"`
	Grid            optimize.Grid `json:"grid,omitempty" yaml:"grid,omitempty"`
}

// Journal types.
const (
	JournalNone     = "none"
	JournalCSV      = "csv"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

type JournalConfig struct {
	Type   string `json:"type" yaml:"type"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"` // sqlite
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`         // postgres
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`         // csv
}

type CacheConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	cache.Config `yaml:",inline"`
}

// LoadFromFile loads configuration from a file, YAML first with a JSON
// fallback, on top of Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if err := c.MonteCarlo.Validate(); err != nil {
		return err
	}
	if err := c.WalkForward.Validate(); err != nil {
		return err
	}
	if err := c.Optimizer.Config.Validate(); err != nil {
		return err
	}
	if len(c.Optimizer.Grid) > 0 {
		if err := c.Optimizer.Grid.Validate(); err != nil {
			return err
		}
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	if c.Cache.Enabled {
		if err := c.Cache.Config.Validate(); err != nil {
			return err
		}
	}
	return c.Logging.Validate()
}

func (j JournalConfig) Validate() error {
	switch j.Type {
	case "", JournalNone:
	case JournalCSV:
		if j.Dir == "" {
			return fmt.Errorf("journal dir required for csv type")
		}
	case JournalSQLite:
		if j.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	case JournalPostgres:
		if j.DSN == "" {
			return fmt.Errorf("journal dsn required for postgres type")
		}
	default:
		return fmt.Errorf("journal.type must be one of none, csv, sqlite, postgres")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: backtest.DefaultConfig(),
		Strategy: StrategyConfig{
			Name:   "ma-cross",
			Symbol: "BTC-USD",
		},
		MonteCarlo:  resample.DefaultMonteCarloConfig(),
		WalkForward: resample.DefaultWalkForwardConfig(),
		Optimizer: OptimizerConfig{
			Config: optimize.DefaultConfig(),
			Grid: optimize.Grid{
				"fast_ma": {5, 10, 20},
				"slow_ma": {30, 50, 100},
			},
		},
		Journal: JournalConfig{
			Type:   JournalSQLite,
			DBPath: "./stratlab.db",
		},
		Cache: CacheConfig{
			Config: cache.DefaultConfig(),
		},
		Logging: logging.DefaultConfig(),
	}
}
