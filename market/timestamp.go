package market

import (
	"strconv"
	"strings"
)

// Stamp is a timestamp broken into calendar fields. Seconds and finer are
// dropped; nothing downstream groups below one minute.
type Stamp struct {
	Year, Month, Day int
	Hour, Minute     int
}

// ParseTimestamp splits a bar timestamp into its fields. Supported shapes:
//
//	2025-08-04T00_00_00.000000000Z   (Databento file names)
//	2025-08-04T00:00:00
//	2024-01-02 12:30:00
//	2024-01-02
//
// A date-only value parses with a zero clock. An unreadable clock part is
// ignored rather than rejected.
func ParseTimestamp(ts string) (Stamp, bool) {
	var st Stamp
	s := strings.ReplaceAll(strings.TrimSpace(ts), "_", ":")

	date, clock := splitDateTime(s)
	if len(date) < 10 {
		return st, false
	}

	var err error
	if st.Year, err = strconv.Atoi(date[0:4]); err != nil {
		return Stamp{}, false
	}
	if st.Month, err = strconv.Atoi(date[5:7]); err != nil {
		return Stamp{}, false
	}
	if st.Day, err = strconv.Atoi(date[8:10]); err != nil {
		return Stamp{}, false
	}

	if h, m, ok := parseClock(clock); ok {
		st.Hour, st.Minute = h, m
	}
	return st, true
}

// Date returns the calendar date part ("YYYY-MM-DD") of a timestamp, or ""
// when the timestamp is too short to hold one.
func Date(ts string) string {
	date, _ := splitDateTime(ts)
	if date != ts {
		return date
	}
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ""
}

// ClockTime returns hour and minute of a timestamp. ok is false for
// date-only timestamps.
func ClockTime(ts string) (hour, minute int, ok bool) {
	_, clock := splitDateTime(ts)
	if clock == "" {
		return 0, 0, false
	}
	return parseClock(strings.ReplaceAll(clock, "_", ":"))
}

func splitDateTime(s string) (date, clock string) {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i], s[i+1:]
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// parseClock reads "HH:MM[:SS...]".
func parseClock(clock string) (hour, minute int, ok bool) {
	c1 := strings.IndexByte(clock, ':')
	if c1 < 1 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(clock[:c1])
	if err != nil {
		return 0, 0, false
	}
	rest := clock[c1+1:]
	if c2 := strings.IndexByte(rest, ':'); c2 >= 0 {
		rest = rest[:c2]
	}
	m, err := strconv.Atoi(rest)
	if err != nil {
		return h, 0, true
	}
	return h, m, true
}
