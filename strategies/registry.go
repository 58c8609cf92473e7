// Package strategies holds the bundled trading strategies and the factory
// that builds them by name.
package strategies

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/backtest"
)

// DefaultMinBars is the history a symbol needs before a multi-symbol run
// bothers testing it, unless the strategy registered its own.
const DefaultMinBars = 21

// Factory builds a strategy and a human-readable description of the
// parameters it ended up with.
type Factory func(p Params) (backtest.Strategy, string, error)

type entry struct {
	factory Factory
	minBars int
}

var registry = make(map[string]entry)

// Register adds a strategy under name. Registering a name twice replaces the
// earlier factory.
func Register(name string, minBars int, f Factory) {
	registry[normalize(name)] = entry{factory: f, minBars: minBars}
}

// New builds the strategy registered under name.
func New(name string, p Params) (backtest.Strategy, string, error) {
	e, ok := registry[normalize(name)]
	if !ok {
		return nil, "", fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	strat, desc, err := e.factory(p)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", normalize(name), err)
	}
	return strat, desc, nil
}

func Has(name string) bool {
	_, ok := registry[normalize(name)]
	return ok
}

// Names lists the registered strategies, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MinBars is the number of bars a series needs before the strategy can trade.
func MinBars(name string) int {
	if e, ok := registry[normalize(name)]; ok && e.minBars > 0 {
		return e.minBars
	}
	return DefaultMinBars
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// units sizes an entry as a fraction of equity at price: floored, at least 1.
func units(equity, price, fraction float64) float64 {
	u := math.Floor(equity / price * fraction)
	if u < 1 || math.IsNaN(u) {
		return 1
	}
	return u
}

// whole truncates a position to whole units; exits never send fractions.
func whole(pos float64) float64 {
	return math.Trunc(math.Abs(pos))
}
