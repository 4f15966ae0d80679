package domain

import (
	"encoding/json/v2"
	"math"
)

// Count is a denormalized, non-negative counter stored on a document.
//
// Counters are a cache of membership records and may have been written by
// older clients, so decoding is lenient: anything that is not a finite
// number reads as 0, negatives read as 0, and fractions are truncated.
type Count int64

// UnmarshalJSON implements lenient decoding.
func (c *Count) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*c = 0
		return nil
	}
	*c = CountOf(f)
	return nil
}

// CountOf converts an arbitrary decoded value to a Count.
func CountOf(v any) Count {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case Count:
		f = float64(n)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return Count(f)
}

// Add returns c+delta floored at zero.
func (c Count) Add(delta int64) Count {
	next := int64(c) + delta
	if next < 0 {
		return 0
	}
	return Count(next)
}
