package util

import (
	"testing"
	"time"
)

func TestIsLeapYear(t *testing.T) {
	cases := []struct {
		year int
		want bool
	}{
		{1900, false},
		{2000, true},
		{2023, false},
		{2024, true},
		{2025, false},
	}
	for _, c := range cases {
		if got := IsLeapYear(c.year); got != c.want {
			t.Fatalf("IsLeapYear(%d)=%v, want %v", c.year, got, c.want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := DaysInMonth(2023, 2); got != 28 {
		t.Fatalf("DaysInMonth(2023, 2)=%d, want 28", got)
	}
	if got := DaysInMonth(2024, 2); got != 29 {
		t.Fatalf("DaysInMonth(2024, 2)=%d, want 29", got)
	}
	if got := DaysInMonth(2024, 4); got != 30 {
		t.Fatalf("DaysInMonth(2024, 4)=%d, want 30", got)
	}
	if got := DaysInMonth(2024, 1); got != 31 {
		t.Fatalf("DaysInMonth(2024, 1)=%d, want 31", got)
	}
}

func TestSeedFor(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	if got := SeedFor(42, 3, now); got != 45 {
		t.Fatalf("SeedFor(42, 3)=%d, want 45", got)
	}
	if got := SeedFor(-1, 2, now); got != 1_700_000_000_002 {
		t.Fatalf("SeedFor(-1, 2)=%d, want wall clock + 2", got)
	}
}

func TestRandDateStaysInMonth(t *testing.T) {
	r := NewRand(7)
	for i := 0; i < 200; i++ {
		d := RandDate(r, 1999, 2001)
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			t.Fatalf("RandDate produced %q: %v", d, err)
		}
		if parsed.Year() < 1999 || parsed.Year() > 2001 {
			t.Fatalf("RandDate year out of range: %s", d)
		}
	}
}

func TestRandIntRangeBounds(t *testing.T) {
	r := NewRand(1)
	for i := 0; i < 100; i++ {
		v := RandIntRange(r, 0, 3)
		if v < 0 || v > 3 {
			t.Fatalf("RandIntRange(0, 3)=%d", v)
		}
	}
	if got := RandIntRange(r, 5, 5); got != 5 {
		t.Fatalf("RandIntRange(5, 5)=%d", got)
	}
}
