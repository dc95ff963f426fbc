// ABOUTME: Refresh scheduler, a single-sample proportional corrector
// ABOUTME: Phases display updates just past the minute boundary while maximizing sleep
package sched

import "log"

// biasFloorMs is the fixed part of the target bias: shift = target - 2000.
const biasFloorMs = 2000

// State is the scheduler's carry-over between display cycles.
type State struct {
	IntervalMs int64 // nominal display period, floor 60000
	TargetMs   int64 // bias past the minute boundary, nominal 4000

	LastUpdateTick int64 // monotonic ms reference of the last display update
	PrevSleepMs    int64 // sleep granted last cycle
}

// New builds a scheduler state with the interval floored at one minute.
func New(intervalMs, targetMs int64) *State {
	if intervalMs < 60000 {
		intervalMs = 60000
	}
	return &State{IntervalMs: intervalMs, TargetMs: targetMs}
}

func (s *State) shiftMs() int64 { return s.TargetMs - biasFloorMs }

// Plan computes the next sleep duration. secondsInMinute is the wall-clock
// second hand (0..59) observed right after the display refresh finished;
// cycleMs is how long the whole wake cycle took. The reference tick is nudged
// forward when the update landed early and pulled back by the previous
// cycle's shortfall when it landed late. The result is clamped to >= 0.
func (s *State) Plan(secondsInMinute int, cycleMs int64) int64 {
	remainder := (int64(secondsInMinute) * 1000) % s.IntervalMs
	shift := s.shiftMs()

	var sleep int64
	if remainder <= s.TargetMs {
		s.LastUpdateTick += shift - remainder
		sleep = s.IntervalMs - cycleMs - remainder + shift
	} else {
		s.LastUpdateTick -= s.IntervalMs - s.PrevSleepMs
		sleep = s.IntervalMs - cycleMs - remainder + shift
	}
	if sleep < 0 {
		sleep = 0
	}
	s.PrevSleepMs = sleep
	log.Printf("[SCHED] remainder=%dms cycle=%dms sleep=%dms", remainder, cycleMs, sleep)
	return sleep
}

// MarkUpdate records the monotonic tick of a display update.
func (s *State) MarkUpdate(tickMs int64) {
	s.LastUpdateTick = tickMs
}
