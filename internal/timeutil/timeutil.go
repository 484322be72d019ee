// Package timeutil provides the two timestamp primitives the rest of
// the node shares: the current epoch-seconds clock, and the
// ASCII-decimal byte encoding used everywhere an integer is hashed or
// put on the wire.
package timeutil

import (
	"strconv"
	"time"
)

// NowSeconds returns the current Unix time in whole seconds.
func NowSeconds() uint64 {
	return uint64(time.Now().Unix())
}

// ASCIIDecimal encodes n as its base-10 ASCII representation.
func ASCIIDecimal(n uint64) []byte {
	return []byte(strconv.FormatUint(n, 10))
}

// ParseASCIIDecimal parses b back into a uint64. It expects exactly
// the form ASCIIDecimal produces.
func ParseASCIIDecimal(b []byte) (uint64, error) {
	return strconv.ParseUint(string(b), 10, 64)
}
