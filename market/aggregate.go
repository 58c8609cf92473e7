package market

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution is a bar timeframe in minutes.
type Resolution int

const (
	OneMinute     Resolution = 1
	FifteenMinute Resolution = 15
	OneHour       Resolution = 60
)

// ParseResolution accepts "1m", "15m", "1h" and "1hr" (case-insensitive).
// An empty string means 1m.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1m":
		return OneMinute, nil
	case "15m":
		return FifteenMinute, nil
	case "1h", "1hr":
		return OneHour, nil
	}
	return 0, fmt.Errorf("unsupported bar resolution %q (supported: 1m, 15m, 1h)", s)
}

func (r Resolution) String() string {
	switch {
	case r >= 60 && r%60 == 0:
		return fmt.Sprintf("%dh", int(r)/60)
	default:
		return fmt.Sprintf("%dm", int(r))
	}
}

// PeriodKey returns the "YYYY-MM-DDTHH:MM" bucket a stamp falls into for an
// interval of the given minutes. Intervals of an hour or more always bucket
// on the hour.
func PeriodKey(st Stamp, minutes int) string {
	m := st.Minute
	if minutes > 0 {
		m = (st.Minute / minutes) * minutes
	}
	if minutes >= 60 {
		m = 0
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", st.Year, st.Month, st.Day, st.Hour, m)
}

// Aggregate groups bars into coarser bars of the given resolution:
// open=first, high=max, low=min, close=last, volume=sum. The input must be
// sorted by timestamp. Bars whose timestamp cannot be parsed are dropped.
// The output is sorted by bucket key, which also becomes the bar timestamp.
// A resolution of one minute (or less) returns the input unchanged.
func Aggregate(bars []Bar, res Resolution) []Bar {
	if res <= OneMinute {
		return bars
	}

	minutes := int(res)
	buckets := make(map[string]*Bar)
	for _, b := range bars {
		st, ok := ParseTimestamp(b.Timestamp)
		if !ok {
			continue
		}
		key := PeriodKey(st, minutes)

		agg, ok := buckets[key]
		if !ok {
			nb := b
			nb.Timestamp = key
			buckets[key] = &nb
			continue
		}
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Close = b.Close
		agg.Volume += b.Volume
	}

	out := make([]Bar, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
