// Package util holds the time units and small integer helpers shared by the
// sim packages. All simulated time is int64 picoseconds.
package util

import (
	"math"
	"math/bits"
)

// Time units, in picoseconds.
const (
	Picosecond  int64 = 1
	Nanosecond        = 1000 * Picosecond
	Microsecond       = 1000 * Nanosecond
	Millisecond       = 1000 * Microsecond
	Second            = 1000 * Millisecond
)

// CeilDiv returns ceil(a/b) for non-negative a and positive b.
func CeilDiv(a, b int64) int64 {
	if b <= 0 {
		panic("CeilDiv: divisor must be > 0")
	}
	return (a + b - 1) / b
}

// TransferTime converts a byte count and a bandwidth in GB/s into picoseconds,
// rounding up. A non-positive bandwidth means unlimited and yields 0.
// 1 GB/s moves one byte per nanosecond.
func TransferTime(bytes int64, gbps float64) int64 {
	if gbps <= 0 || bytes <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(bytes) * float64(Nanosecond) / gbps))
}

// CyclesToTime converts a cycle count at the given clock frequency into picoseconds.
func CyclesToTime(cycles int64, ghz float64) int64 {
	if ghz <= 0 || cycles <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(cycles) * float64(Nanosecond) / ghz))
}

// SumSq is an unsigned 128-bit accumulator for sums of squared durations.
// Picosecond service times squared overflow int64 after a few hundred
// thousand page transfers, so the window keeps the exact sum here.
type SumSq struct {
	hi, lo uint64
}

// Add adds v*v.
func (s *SumSq) Add(v int64) {
	hi, lo := bits.Mul64(uint64(v), uint64(v))
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, lo, 0)
	s.hi, _ = bits.Add64(s.hi, hi, carry)
}

// Sub subtracts v*v. The caller must only subtract values it added.
func (s *SumSq) Sub(v int64) {
	hi, lo := bits.Mul64(uint64(v), uint64(v))
	var borrow uint64
	s.lo, borrow = bits.Sub64(s.lo, lo, 0)
	s.hi, _ = bits.Sub64(s.hi, hi, borrow)
}

// IsZero reports whether the sum is zero.
func (s SumSq) IsZero() bool {
	return s.hi == 0 && s.lo == 0
}

// Float64 returns the sum as a float64.
func (s SumSq) Float64() float64 {
	return float64(s.hi)*math.Exp2(64) + float64(s.lo)
}
