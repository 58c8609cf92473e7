// Package id issues run identifiers for backtests.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Monotonic entropy keeps IDs issued in the same millisecond ordered.
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewRunID returns a ULID string stamped with the current time.
func NewRunID() string {
	return NewRunIDAt(time.Now().UTC())
}

// NewRunIDAt returns a ULID string stamped with t. Runs sort by creation
// time in the journal because ULIDs sort lexicographically.
func NewRunIDAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), mono)
	if err != nil {
		// only possible if entropy is exhausted within one millisecond
		panic(err)
	}
	return id.String()
}

// Created extracts the creation time encoded in a run ID.
func Created(runID string) (time.Time, error) {
	id, err := ulid.ParseStrict(runID)
	if err != nil {
		return time.Time{}, fmt.Errorf("id: parse %q: %w", runID, err)
	}
	return ulid.Time(id.Time()).UTC(), nil
}
