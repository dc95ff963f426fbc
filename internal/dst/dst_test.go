// ABOUTME: Tests for the DST rule engine
// ABOUTME: Covers EU boundary instants, nth/last weekday resolution and the southern wrap
package dst

import (
	"testing"
	"time"
)

func epoch(y int, m time.Month, d, hh, mm int) int64 {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC).Unix()
}

func TestEUTransitionBoundaries(t *testing.T) {
	e := Engine{BaseOffsetHours: 0, Enabled: true, Region: "EU"}

	cases := []struct {
		when int64
		want int
	}{
		{epoch(2025, time.March, 30, 1, 59), 0},   // one minute before spring switch
		{epoch(2025, time.March, 30, 2, 0), 1},    // last Sunday of March, 02:00
		{epoch(2025, time.July, 15, 12, 0), 1},    // mid summer
		{epoch(2025, time.October, 26, 2, 59), 1}, // one minute before autumn switch
		{epoch(2025, time.October, 26, 3, 0), 0},  // last Sunday of October, 03:00
		{epoch(2025, time.January, 10, 12, 0), 0}, // winter
	}

	for _, tc := range cases {
		if got := e.OffsetHours(tc.when); got != tc.want {
			t.Errorf("OffsetHours(%s) = %d, want %d",
				time.Unix(tc.when, 0).UTC().Format(time.RFC3339), got, tc.want)
		}
	}
}

func TestBaseOffsetAdded(t *testing.T) {
	e := Engine{BaseOffsetHours: 1, Enabled: true, Region: "EU"}
	if got := e.OffsetHours(epoch(2025, time.July, 1, 12, 0)); got != 2 {
		t.Errorf("summer Amsterdam offset = %d, want 2", got)
	}
	if got := e.OffsetHours(epoch(2025, time.January, 1, 12, 0)); got != 1 {
		t.Errorf("winter Amsterdam offset = %d, want 1", got)
	}
}

func TestDisabledReturnsBase(t *testing.T) {
	e := Engine{BaseOffsetHours: 5, Enabled: false, Region: "EU"}
	if got := e.OffsetHours(epoch(2025, time.July, 1, 12, 0)); got != 5 {
		t.Errorf("disabled engine offset = %d, want base 5", got)
	}
}

func TestUnknownRegionFallsBackToNone(t *testing.T) {
	e := Engine{BaseOffsetHours: 3, Enabled: true, Region: "XX"}
	if got := e.OffsetHours(epoch(2025, time.July, 1, 12, 0)); got != 3 {
		t.Errorf("unknown region offset = %d, want base 3", got)
	}
}

func TestSouthernHemisphereWrap(t *testing.T) {
	e := Engine{BaseOffsetHours: 10, Enabled: true, Region: "AU"}

	// December sits inside the wrapped interval, June outside.
	if got := e.OffsetHours(epoch(2025, time.December, 15, 12, 0)); got != 11 {
		t.Errorf("AU December offset = %d, want 11", got)
	}
	if got := e.OffsetHours(epoch(2025, time.June, 15, 12, 0)); got != 10 {
		t.Errorf("AU June offset = %d, want 10", got)
	}
}

func TestTransitionDay(t *testing.T) {
	cases := []struct {
		year int
		tr   Transition
		want int
	}{
		{2025, Transition{time.March, "last", time.Sunday, 2}, 30},
		{2025, Transition{time.October, "last", time.Sunday, 3}, 26},
		{2025, Transition{time.March, "2nd", time.Sunday, 2}, 9},
		{2025, Transition{time.November, "1st", time.Sunday, 2}, 2},
		{2024, Transition{time.February, "last", time.Thursday, 0}, 29}, // leap year
	}

	for _, tc := range cases {
		if got := TransitionDay(tc.year, tc.tr); got != tc.want {
			t.Errorf("TransitionDay(%d, %v %s) = %d, want %d",
				tc.year, tc.tr.Month, tc.tr.Which, got, tc.want)
		}
	}
}
