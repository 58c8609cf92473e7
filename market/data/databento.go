package data

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/market"
)

// A Databento export directory holds one file per bar. The file *name* is
// the record: ts,_,_,_,open,high,low,close,volume,symbol.
const databentoFields = 10

// DatabentoSource loads the bars of one symbol (or all files when Symbol is
// empty) from a Databento export directory.
type DatabentoSource struct {
	Dir    string
	Symbol string
}

func (s *DatabentoSource) Load(ctx context.Context) ([]market.Bar, error) {
	entries, err := readDir(s.Dir)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(strings.TrimSpace(s.Symbol))
	var bars []market.Bar
	for i, e := range entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !e.Type().IsRegular() {
			continue
		}
		parts := splitName(e.Name())
		if len(parts) < databentoFields {
			continue
		}
		if want != "" && strings.ToLower(parts[9]) != want {
			continue
		}
		if b, ok := parseDatabentoName(parts); ok {
			bars = append(bars, b)
		}
	}

	market.SortBars(bars)
	return bars, nil
}

// ParseDatabentoName decodes one bar from a Databento file name.
func ParseDatabentoName(name string) (market.Bar, bool) {
	parts := splitName(name)
	if len(parts) < databentoFields {
		return market.Bar{}, false
	}
	return parseDatabentoName(parts)
}

func parseDatabentoName(parts []string) (market.Bar, bool) {
	b := market.Bar{Timestamp: parts[0]}
	for i, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume} {
		v, ok := parseFinite(parts[4+i])
		if !ok {
			return market.Bar{}, false
		}
		*dst = v
	}
	return b, true
}

// ListSymbols returns the distinct lower-cased symbols found in a Databento
// export directory, sorted.
func ListSymbols(dir string) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		parts := splitName(e.Name())
		if len(parts) < databentoFields {
			continue
		}
		if sym := strings.ToLower(parts[9]); sym != "" {
			seen[sym] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func readDir(dir string) ([]os.DirEntry, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data: databento dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("data: databento dir %s is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("data: read databento dir: %w", err)
	}
	return entries, nil
}

func splitName(name string) []string {
	parts := strings.Split(name, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
