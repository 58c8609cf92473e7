package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rustyeddy/backtester/market"
)

// Accepted header names per column, matched case-insensitively.
var (
	timeColumns   = []string{"timestamp", "date", "datetime", "time"}
	openColumns   = []string{"open", "o"}
	highColumns   = []string{"high", "h"}
	lowColumns    = []string{"low", "l"}
	closeColumns  = []string{"close", "c"}
	volumeColumns = []string{"volume", "vol", "v"}
)

// CSVSource reads one bar per row from a CSV file with a header row.
// Rows that do not parse are skipped.
type CSVSource struct {
	Path string
}

type columns struct {
	ts, open, high, low, close, volume int
}

func (s *CSVSource) Load(ctx context.Context) ([]market.Bar, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("data: open csv: %w", err)
	}
	defer f.Close()

	return ReadCSV(ctx, f)
}

// ReadCSV parses bars from r. The first record must be a header naming at
// least the timestamp, open, high, low and close columns.
func ReadCSV(ctx context.Context, r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("data: csv has no header row")
		}
		return nil, fmt.Errorf("data: read csv header: %w", err)
	}
	cols, err := findColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []market.Bar
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("data: read csv: %w", err)
		}

		if b, ok := parseRecord(rec, cols); ok {
			bars = append(bars, b)
		}
	}
	return bars, nil
}

func findColumns(header []string) (columns, error) {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	cols := columns{
		ts:     findColumn(names, timeColumns),
		open:   findColumn(names, openColumns),
		high:   findColumn(names, highColumns),
		low:    findColumn(names, lowColumns),
		close:  findColumn(names, closeColumns),
		volume: findColumn(names, volumeColumns),
	}

	var missing []string
	for _, c := range []struct {
		idx  int
		name string
	}{
		{cols.ts, "timestamp"},
		{cols.open, "open"},
		{cols.high, "high"},
		{cols.low, "low"},
		{cols.close, "close"},
	} {
		if c.idx < 0 {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("data: csv header missing column(s): %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// findColumn returns the index of the first alias present in names, trying
// aliases in order.
func findColumn(names, aliases []string) int {
	for _, alias := range aliases {
		for i, n := range names {
			if n == alias {
				return i
			}
		}
	}
	return -1
}

func parseRecord(rec []string, cols columns) (market.Bar, bool) {
	if len(rec) < 5 {
		return market.Bar{}, false
	}
	field := func(i int) (string, bool) {
		if i < 0 || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	ts, ok := field(cols.ts)
	if !ok {
		return market.Bar{}, false
	}
	b := market.Bar{Timestamp: ts}

	for _, p := range []struct {
		idx int
		dst *float64
	}{
		{cols.open, &b.Open},
		{cols.high, &b.High},
		{cols.low, &b.Low},
		{cols.close, &b.Close},
	} {
		s, ok := field(p.idx)
		if !ok {
			return market.Bar{}, false
		}
		v, ok := parseFinite(s)
		if !ok {
			return market.Bar{}, false
		}
		*p.dst = v
	}

	if s, ok := field(cols.volume); ok && s != "" {
		v, ok := parseFinite(s)
		if !ok {
			return market.Bar{}, false
		}
		b.Volume = v
	}
	return b, true
}

// parseFinite parses a price or volume field. NaN and infinities count as
// unparseable so they never reach the engine or the report writers.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
