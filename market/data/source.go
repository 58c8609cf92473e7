// Package data loads bar series from files on disk.
package data

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/backtester/market"
)

// Source produces a bar series sorted ascending by timestamp.
type Source interface {
	Load(ctx context.Context) ([]market.Bar, error)
}

var ErrNoSource = errors.New("data: no data path, databento dir or parquet path configured")

// Config selects a source. A Databento directory wins over a parquet file,
// which wins over a CSV path. A Path ending in .parquet is read as parquet.
type Config struct {
	Path         string
	DatabentoDir string
	ParquetPath  string
	Symbol       string
}

// Open returns the source described by cfg.
func Open(cfg Config) (Source, error) {
	switch {
	case cfg.DatabentoDir != "":
		return &DatabentoSource{Dir: cfg.DatabentoDir, Symbol: cfg.Symbol}, nil
	case cfg.ParquetPath != "":
		return &ParquetSource{Path: cfg.ParquetPath, Symbol: cfg.Symbol}, nil
	case strings.EqualFold(filepath.Ext(cfg.Path), ".parquet"):
		return &ParquetSource{Path: cfg.Path, Symbol: cfg.Symbol}, nil
	case cfg.Path != "":
		return &CSVSource{Path: cfg.Path}, nil
	}
	return nil, ErrNoSource
}

// Label names the dataset for reports and the journal.
func (c Config) Label() string {
	switch {
	case c.DatabentoDir != "" && c.Symbol != "":
		return strings.ToLower(c.Symbol)
	case c.DatabentoDir != "":
		return filepath.Base(c.DatabentoDir)
	case c.ParquetPath != "":
		return strings.TrimSuffix(filepath.Base(c.ParquetPath), filepath.Ext(c.ParquetPath))
	case c.Path != "":
		return strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
	}
	return "backtest"
}
