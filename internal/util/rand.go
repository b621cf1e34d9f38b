package util

import (
	"fmt"
	"math/rand"
	"time"
)

// NewRand returns a generator seeded with seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// SeedFor returns the seed of the i-th slot. A negative base means wall-clock seeding.
func SeedFor(base int64, i int, now time.Time) int64 {
	if base < 0 {
		return now.UnixMilli() + int64(i)
	}
	return base + int64(i)
}

// RandIntRange returns a random int in [min, max].
func RandIntRange(r *rand.Rand, min int, max int) int {
	if max <= min {
		return min
	}
	return min + r.Intn(max-min+1)
}

// FromOptions returns one of the options uniformly.
func FromOptions[T any](r *rand.Rand, options ...T) T {
	return options[r.Intn(len(options))]
}

// RandDate returns a random DATE literal body in [minYear, maxYear].
func RandDate(r *rand.Rand, minYear, maxYear int) string {
	year := RandIntRange(r, minYear, maxYear)
	month := RandIntRange(r, 1, 12)
	day := RandIntRange(r, 1, DaysInMonth(year, month))
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// IsLeapYear reports whether year is a leap year.
func IsLeapYear(year int) bool {
	if year%400 == 0 {
		return true
	}
	if year%100 == 0 {
		return false
	}
	return year%4 == 0
}

// DaysInMonth returns the number of days for a given month in a year.
func DaysInMonth(year int, month int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
