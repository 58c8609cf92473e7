// Package config holds the settings of a backtest run. Values come from
// defaults, an optional YAML or JSON file and BACKTEST_* environment
// variables, merged with viper.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// EnvPrefix prefixes environment overrides, e.g. BACKTEST_ACCOUNT_CASH.
const EnvPrefix = "BACKTEST"

// Journal types.
const (
	JournalNone   = "none"
	JournalCSV    = "csv"
	JournalSQLite = "sqlite"
)

// Config represents the complete run configuration
type Config struct {
	Data     DataConfig     `json:"data" yaml:"data" mapstructure:"data"`
	Account  AccountConfig  `json:"account" yaml:"account" mapstructure:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
	Report   ReportConfig   `json:"report" yaml:"report" mapstructure:"report"`
	Journal  JournalConfig  `json:"journal" yaml:"journal" mapstructure:"journal"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// DataConfig selects the bar source and its resolution
type DataConfig struct {
	Path         string `json:"path" yaml:"path" mapstructure:"path"`
	DatabentoDir string `json:"databento_dir,omitempty" yaml:"databento_dir,omitempty" mapstructure:"databento_dir"`
	ParquetPath  string `json:"parquet_path,omitempty" yaml:"parquet_path,omitempty" mapstructure:"parquet_path"`
	Symbol       string `json:"symbol,omitempty" yaml:"symbol,omitempty" mapstructure:"symbol"`
	Resolution   string `json:"resolution" yaml:"resolution" mapstructure:"resolution"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Cash       float64 `json:"cash" yaml:"cash" mapstructure:"cash"`
	Commission float64 `json:"commission" yaml:"commission" mapstructure:"commission"`
	Slippage   float64 `json:"slippage" yaml:"slippage" mapstructure:"slippage"`
}

// StrategyConfig names a registered strategy and its parameters
type StrategyConfig struct {
	Name   string            `json:"name" yaml:"name" mapstructure:"name"`
	Params strategies.Params `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// ReportConfig controls where report files go
type ReportConfig struct {
	Dir          string `json:"dir" yaml:"dir" mapstructure:"dir"`
	SessionLabel string `json:"session_label,omitempty" yaml:"session_label,omitempty" mapstructure:"session_label"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" mapstructure:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" mapstructure:"trades_file"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty" mapstructure:"equity_file"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" mapstructure:"db_path"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// MetricsConfig names a Prometheus textfile to write after each run
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path:       "data/sample_ohlc.csv",
			Resolution: "1m",
		},
		Account: AccountConfig{
			Cash: 100000,
		},
		Strategy: StrategyConfig{
			Name: "sma_crossover",
		},
		Report: ReportConfig{
			Dir: "reports",
		},
		Journal: JournalConfig{
			Type:       JournalNone,
			TradesFile: "journal_trades.csv",
			EquityFile: "journal_equity.csv",
			DBPath:     "backtest.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// NewViper returns a viper instance seeded with Default and reading
// BACKTEST_* environment variables. Callers may bind flags before Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	defaults := map[string]any{
		"data.path":            d.Data.Path,
		"data.databento_dir":   d.Data.DatabentoDir,
		"data.parquet_path":    d.Data.ParquetPath,
		"data.symbol":          d.Data.Symbol,
		"data.resolution":      d.Data.Resolution,
		"account.cash":         d.Account.Cash,
		"account.commission":   d.Account.Commission,
		"account.slippage":     d.Account.Slippage,
		"strategy.name":        d.Strategy.Name,
		"report.dir":           d.Report.Dir,
		"report.session_label": d.Report.SessionLabel,
		"journal.type":         d.Journal.Type,
		"journal.trades_file":  d.Journal.TradesFile,
		"journal.equity_file":  d.Journal.EquityFile,
		"journal.db_path":      d.Journal.DBPath,
		"log.level":            d.Log.Level,
		"log.format":           d.Log.Format,
		"metrics.textfile":     d.Metrics.Textfile,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML or JSON file into v. The format follows the
// extension.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Decode unmarshals v into a Config without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load builds the configuration from defaults, the optional file at path
// and the environment, then validates it.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		if err := ReadFile(v, path); err != nil {
			return nil, err
		}
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config file path is required")
	}
	return Load(path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if isYAML(path) {
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

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Cash < 0 {
		return fmt.Errorf("account.cash must be >= 0")
	}
	if c.Account.Commission < 0 {
		return fmt.Errorf("account.commission must be >= 0")
	}
	if c.Account.Slippage < 0 || c.Account.Slippage >= 1 {
		return fmt.Errorf("account.slippage must be in [0, 1)")
	}
	if _, err := market.ParseResolution(c.Data.Resolution); err != nil {
		return fmt.Errorf("data.resolution: %w", err)
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if !strategies.Has(c.Strategy.Name) {
		return fmt.Errorf("unknown strategy: %s (available: %s)", c.Strategy.Name, strings.Join(strategies.Names(), ", "))
	}
	if _, _, err := c.NewStrategy(); err != nil {
		return fmt.Errorf("strategy.params: %w", err)
	}

	switch c.Journal.Type {
	case "", JournalNone:
	case JournalCSV:
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := c.Log.Format; f != "" && f != "console" && f != "json" {
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

// Source returns the data source selection.
func (c *Config) Source() data.Config {
	return data.Config{
		Path:         c.Data.Path,
		DatabentoDir: c.Data.DatabentoDir,
		ParquetPath:  c.Data.ParquetPath,
		Symbol:       c.Data.Symbol,
	}
}

func (c *Config) Resolution() (market.Resolution, error) {
	return market.ParseResolution(c.Data.Resolution)
}

func (c *Config) Sim() sim.Config {
	return sim.Config{
		InitialCash: c.Account.Cash,
		Commission:  c.Account.Commission,
		Slippage:    c.Account.Slippage,
	}
}

// NewStrategy builds a fresh instance of the configured strategy. Call it
// once per run; strategies keep state.
func (c *Config) NewStrategy() (backtest.Strategy, string, error) {
	return strategies.New(c.Strategy.Name, c.Strategy.Params)
}
