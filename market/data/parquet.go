package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/backtester/market"
)

// BarRecord is the parquet schema for bar files. Time keeps the source
// timestamp text so a round trip does not change bar keys; Timestamp is the
// same instant in Unix milliseconds for other tools.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Time      string  `parquet:"time"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetSource reads bars from a parquet file written by WriteParquet.
// When Symbol is set only matching rows are kept.
type ParquetSource struct {
	Path   string
	Symbol string
}

func (s *ParquetSource) Load(ctx context.Context) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := parquet.ReadFile[BarRecord](s.Path)
	if err != nil {
		return nil, fmt.Errorf("data: read parquet %s: %w", s.Path, err)
	}

	want := strings.ToLower(strings.TrimSpace(s.Symbol))
	bars := make([]market.Bar, 0, len(records))
	for _, r := range records {
		if want != "" && strings.ToLower(r.Symbol) != want {
			continue
		}
		ts := r.Time
		if ts == "" && r.Timestamp != 0 {
			ts = time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02T15:04:05")
		}
		bars = append(bars, market.Bar{
			Timestamp: ts,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}

	market.SortBars(bars)
	return bars, nil
}

// WriteParquet writes bars tagged with symbol to path, creating parent
// directories as needed.
func WriteParquet(path, symbol string, bars []market.Bar) error {
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Symbol:    strings.ToLower(symbol),
			Time:      b.Timestamp,
			Timestamp: unixMilli(b.Timestamp),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("data: write parquet %s: %w", path, err)
	}
	return nil
}

// unixMilli resolves a bar timestamp to minute precision in UTC; 0 when it
// does not parse.
func unixMilli(ts string) int64 {
	st, ok := market.ParseTimestamp(ts)
	if !ok {
		return 0
	}
	return time.Date(st.Year, time.Month(st.Month), st.Day, st.Hour, st.Minute, 0, 0, time.UTC).UnixMilli()
}
