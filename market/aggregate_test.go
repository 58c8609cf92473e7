package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{"", OneMinute, false},
		{"1m", OneMinute, false},
		{"15M", FifteenMinute, false},
		{"1h", OneHour, false},
		{"1hr", OneHour, false},
		{"4h", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResolution(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "15m", FifteenMinute.String())
	assert.Equal(t, "1h", OneHour.String())
}

func TestAggregateFifteenMinutes(t *testing.T) {
	t.Parallel()

	bars := []Bar{
		{Timestamp: "2024-01-02T09:30:00", Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Timestamp: "2024-01-02T09:35:00", Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 50},
		{Timestamp: "2024-01-02T09:44:00", Open: 11, High: 11.5, Low: 8, Close: 9, Volume: 25},
		{Timestamp: "2024-01-02T09:45:00", Open: 9, High: 9.5, Low: 8.5, Close: 9.2, Volume: 10},
		{Timestamp: "garbage", Open: 1, High: 1, Low: 1, Close: 1},
	}

	out := Aggregate(bars, FifteenMinute)
	require.Len(t, out, 2)

	assert.Equal(t, Bar{Timestamp: "2024-01-02T09:30", Open: 10, High: 12, Low: 8, Close: 9, Volume: 175}, out[0])
	assert.Equal(t, Bar{Timestamp: "2024-01-02T09:45", Open: 9, High: 9.5, Low: 8.5, Close: 9.2, Volume: 10}, out[1])
}

func TestAggregateOneHourAndNoop(t *testing.T) {
	t.Parallel()

	bars := []Bar{
		{Timestamp: "2024-01-02 10:59:00", Open: 1, High: 2, Low: 1, Close: 2},
		{Timestamp: "2024-01-02 11:00:00", Open: 2, High: 3, Low: 2, Close: 3},
		{Timestamp: "2024-01-02 11:30:00", Open: 3, High: 4, Low: 1, Close: 1},
	}

	out := Aggregate(bars, OneHour)
	require.Len(t, out, 2)
	assert.Equal(t, "2024-01-02T10:00", out[0].Timestamp)
	assert.Equal(t, "2024-01-02T11:00", out[1].Timestamp)
	assert.Equal(t, 4.0, out[1].High)
	assert.Equal(t, 1.0, out[1].Low)
	assert.Equal(t, 1.0, out[1].Close)

	assert.Equal(t, bars, Aggregate(bars, OneMinute))
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Stamp
		ok   bool
	}{
		{"2025-08-04T13_45_00.000000000Z", Stamp{2025, 8, 4, 13, 45}, true},
		{"2025-08-04T09:30:00", Stamp{2025, 8, 4, 9, 30}, true},
		{"2024-01-02 12:30:00", Stamp{2024, 1, 2, 12, 30}, true},
		{"2024-01-02", Stamp{2024, 1, 2, 0, 0}, true},
		{"2024-1-2", Stamp{}, false},
		{"", Stamp{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateAndClock(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-01-02", Date("2024-01-02T09:30:00"))
	assert.Equal(t, "2024-01-02", Date("2024-01-02 09:30"))
	assert.Equal(t, "2024-01-02", Date("2024-01-02"))
	assert.Equal(t, "", Date("2024"))

	h, m, ok := ClockTime("2024-01-02T09_30_00Z")
	assert.True(t, ok)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	h, m, ok = ClockTime("2024-01-02T14:05")
	assert.True(t, ok)
	assert.Equal(t, 14, h)
	assert.Equal(t, 5, m)

	_, _, ok = ClockTime("2024-01-02")
	assert.False(t, ok)
}

func TestSideHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "long", Long.String())
	assert.Equal(t, "short", Short.String())
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, -1.0, Short.Sign())

	s, err := ParseSide("SELL")
	require.NoError(t, err)
	assert.Equal(t, Short, s)

	_, err = ParseSide("flat")
	assert.Error(t, err)
}
