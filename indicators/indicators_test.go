package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
)

func closes(vals ...float64) []market.Bar {
	bars := make([]market.Bar, len(vals))
	for i, v := range vals {
		bars[i] = market.Bar{Open: v, High: v + 1, Low: v - 1, Close: v}
	}
	return bars
}

func TestSMA(t *testing.T) {
	t.Parallel()

	bars := closes(102, 105, 106, 108, 110)

	assert.InDelta(t, (102+105+106)/3.0, SMA(bars, 3, 3), 1e-9)
	assert.InDelta(t, (106+108+110)/3.0, SMA(bars, 5, 3), 1e-9)
	assert.InDelta(t, 110.0, SMA(bars, 5, 1), 1e-9)

	assert.Zero(t, SMA(bars, 2, 3), "not enough history")
	assert.Zero(t, SMA(bars, 5, 0))
	assert.Zero(t, SMA(bars, 6, 2), "end past the series")
}

func TestEMA(t *testing.T) {
	t.Parallel()

	bars := closes(10, 11, 12, 13)

	got, err := EMA(bars, 4, 2)
	require.NoError(t, err)
	// seed 10.5, then 12 and 13 with k=2/3
	seed := 10.5
	seed = (12-seed)*(2.0/3) + seed
	seed = (13-seed)*(2.0/3) + seed
	assert.InDelta(t, seed, got, 1e-9)

	_, err = EMA(bars, 1, 2)
	require.Error(t, err)
	assert.Equal(t, "not enough bars: need 2, got 1", err.Error())

	_, err = EMA(bars, 4, 0)
	require.Error(t, err)
}

func TestLowestHighest(t *testing.T) {
	t.Parallel()

	bars := closes(5, 3, 8, 4)

	low, ok := Lowest(bars, 0, 3)
	require.True(t, ok)
	assert.Equal(t, 2.0, low)

	high, ok := Highest(bars, -2, 10)
	require.True(t, ok)
	assert.Equal(t, 9.0, high)

	_, ok = Lowest(bars, 2, 2)
	assert.False(t, ok)
}

func TestFitLine(t *testing.T) {
	t.Parallel()

	l := FitLine([]float64{1, 3, 5, 7})
	assert.InDelta(t, 2.0, l.Slope, 1e-12)
	assert.InDelta(t, 1.0, l.Intercept, 1e-12)
	assert.InDelta(t, 9.0, l.At(4), 1e-12)

	l = FitLine([]float64{10, 8, 6})
	assert.InDelta(t, -2.0, l.Slope, 1e-12)

	assert.Equal(t, Line{Intercept: 4}, FitLine([]float64{4}))
	assert.Equal(t, Line{}, FitLine(nil))
}

func TestKalman(t *testing.T) {
	t.Parallel()

	k := NewKalman(2400)
	assert.Equal(t, 100.0, k.Update(100), "first price seeds the filter")

	// constant input settles back onto the price
	got := k.Update(100)
	assert.Equal(t, 100.0, got)

	up := k.Update(110)
	assert.Greater(t, up, 100.0)
	assert.Equal(t, up, k.Value())

	k.Reset()
	assert.Equal(t, 50.0, k.Update(50))
}

func TestLoftFlipsOnCross(t *testing.T) {
	t.Parallel()

	l := NewLoft(Up, 1.0, 1.0, 0)

	trend, moved := l.Update(100)
	assert.Equal(t, Up, trend)
	assert.True(t, moved)
	assert.InDelta(t, 99.0, l.Level(), 1e-9)

	_, moved = l.Update(100)
	assert.False(t, moved, "level only ratchets up")

	_, moved = l.Update(110)
	assert.True(t, moved)
	assert.InDelta(t, 108.9, l.Level(), 1e-9)

	trend, _ = l.Update(100)
	assert.Equal(t, Down, trend)
	assert.InDelta(t, 101.0, l.Level(), 1e-9)
	assert.Equal(t, Down, l.Trend())

	trend, moved = l.Update(95)
	assert.Equal(t, Down, trend)
	assert.True(t, moved)
	assert.InDelta(t, 95.95, l.Level(), 1e-9)
}
