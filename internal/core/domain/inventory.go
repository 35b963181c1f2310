package domain

import (
	"strings"
	"unicode"
)

// MaxProductIDLength bounds the caller-supplied product identifier.
const MaxProductIDLength = 256

// MaxAdjustment bounds a single Increase or Decrease amount. The store-side
// script compares in float64, which is exact only up to 2^53.
const MaxAdjustment = 1 << 53

// Strategy selects how Decrease serializes against concurrent writers.
type Strategy string

const (
	// StrategyScript runs the check and the decrement as one server-side script.
	StrategyScript Strategy = "script"
	// StrategyCAS retries an optimistic WATCH/MULTI/EXEC transaction.
	StrategyCAS Strategy = "cas"
)

func (s Strategy) Valid() bool {
	return s == StrategyScript || s == StrategyCAS
}

// ValidProductID reports whether id can be used as a product key.
func ValidProductID(id string) bool {
	if strings.TrimSpace(id) == "" || len(id) > MaxProductIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
