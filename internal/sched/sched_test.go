// ABOUTME: Tests for the sleep-duration corrector
// ABOUTME: Covers steady state, early and late correction, clamping
package sched

import "testing"

func TestSteadyStateHoldsReference(t *testing.T) {
	// When the update lands exactly at the shift point every cycle, the
	// reference correction is zero indefinitely.
	s := New(60000, 4000)
	s.MarkUpdate(1000)
	ref := s.LastUpdateTick
	for i := 0; i < 10; i++ {
		sleep := s.Plan(2, 500) // remainder 2000 == shift
		if s.LastUpdateTick != ref {
			t.Fatalf("cycle %d moved reference to %d, want %d", i, s.LastUpdateTick, ref)
		}
		if sleep != 60000-500 {
			t.Fatalf("cycle %d sleep = %d, want %d", i, sleep, 60000-500)
		}
	}
}

func TestEarlyUpdateNudgesForward(t *testing.T) {
	s := New(60000, 4000)
	s.MarkUpdate(0)
	sleep := s.Plan(1, 300) // remainder 1000, early by 1000ms from the shift point
	if s.LastUpdateTick != 1000 {
		t.Errorf("reference = %d, want +1000", s.LastUpdateTick)
	}
	want := int64(60000 - 300 - 1000 + 2000)
	if sleep != want {
		t.Errorf("sleep = %d, want %d", sleep, want)
	}
}

func TestLateUpdatePullsBackByShortfall(t *testing.T) {
	s := New(60000, 4000)
	s.MarkUpdate(0)
	s.PrevSleepMs = 58000
	sleep := s.Plan(10, 400) // remainder 10000 > target
	if s.LastUpdateTick != -(60000 - 58000) {
		t.Errorf("reference = %d, want -2000", s.LastUpdateTick)
	}
	want := int64(60000 - 400 - 10000 + 2000)
	if sleep != want {
		t.Errorf("sleep = %d, want %d", sleep, want)
	}
}

func TestSleepClampedAtZero(t *testing.T) {
	s := New(60000, 4000)
	sleep := s.Plan(59, 5000) // remainder 59000, deeply late
	if sleep != 0 {
		t.Errorf("sleep = %d, want clamp to 0", sleep)
	}
	if s.PrevSleepMs != 0 {
		t.Errorf("PrevSleepMs = %d, want 0", s.PrevSleepMs)
	}
}

func TestIntervalFloor(t *testing.T) {
	s := New(30000, 4000)
	if s.IntervalMs != 60000 {
		t.Errorf("IntervalMs = %d, want floor 60000", s.IntervalMs)
	}
}
