// ABOUTME: Tests for the power guard retry path and aging codec
// ABOUTME: Uses the in-memory simulator, no hardware required
package rtc

import (
	"errors"
	"testing"
	"time"
)

func newTestGuard(dev Device) *Guard {
	g := NewGuard(dev, nil, nil)
	g.sleep = func(time.Duration) {} // no real settling in tests
	return g
}

func TestClampAging(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0}, {127, 127}, {128, 127}, {500, 127},
		{-127, -127}, {-128, -127}, {-500, -127}, {42, 42},
	}
	for _, c := range cases {
		if got := ClampAging(c.in); got != c.want {
			t.Errorf("ClampAging(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestGuardRecoversWithinRetryBudget(t *testing.T) {
	sim := NewSim()
	sim.FailReads = 3 // first attempt plus two retries fail
	g := newTestGuard(sim)

	if _, err := g.ReadTime(); err != nil {
		t.Fatalf("expected recovery within retry budget, got %v", err)
	}
}

func TestGuardExhaustsRetryBudget(t *testing.T) {
	sim := NewSim()
	sim.FailReads = 10 // more than first attempt + 5 retries
	g := newTestGuard(sim)

	_, err := g.ReadAging()
	if !errors.Is(err, ErrUnresponsive) {
		t.Fatalf("expected ErrUnresponsive, got %v", err)
	}
}

func TestGuardSettleEscalation(t *testing.T) {
	sim := NewSim()
	sim.FailReads = 2
	g := NewGuard(sim, nil, nil)
	var settles []time.Duration
	g.sleep = func(d time.Duration) { settles = append(settles, d) }

	if _, err := g.ReadTime(); err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	if len(settles) != len(want) {
		t.Fatalf("settles = %v, want %v", settles, want)
	}
	for i := range want {
		if settles[i] != want[i] {
			t.Errorf("settle %d = %v, want %v", i, settles[i], want[i])
		}
	}
}

type countingPower struct {
	on, off int
}

func (p *countingPower) PowerOn() error  { p.on++; return nil }
func (p *countingPower) PowerOff() error { p.off++; return nil }

func TestGuardAlwaysDropsRail(t *testing.T) {
	sim := NewSim()
	sim.FailReads = 10
	pwr := &countingPower{}
	g := NewGuard(sim, pwr, nil)
	g.sleep = func(time.Duration) {}

	g.ReadTime() // exhausts retries
	if pwr.on != pwr.off {
		t.Errorf("power on %d != power off %d, rail left up", pwr.on, pwr.off)
	}
	if pwr.on == 0 {
		t.Error("expected at least one power cycle")
	}
}

func TestGuardClampsAgingWrites(t *testing.T) {
	sim := NewSim()
	g := newTestGuard(sim)

	if err := g.WriteAging(300); err != nil {
		t.Fatalf("WriteAging: %v", err)
	}
	got, err := g.ReadAging()
	if err != nil {
		t.Fatalf("ReadAging: %v", err)
	}
	if got != 127 {
		t.Errorf("aging = %d, want clamp to 127", got)
	}
}

func TestSimKeepsWrittenTime(t *testing.T) {
	sim := NewSim()
	want := time.Date(2025, 3, 30, 1, 59, 30, 0, time.UTC)
	if err := sim.WriteTime(want); err != nil {
		t.Fatalf("WriteTime: %v", err)
	}
	got, err := sim.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if got.Sub(want) > time.Second {
		t.Errorf("ReadTime = %v, want ~%v", got, want)
	}
}

func TestAgingTwosComplement(t *testing.T) {
	// Raw register values above 127 decode as negative.
	cases := []struct {
		raw  byte
		want int
	}{
		{0x00, 0}, {0x05, 5}, {0x7F, 127}, {0xFF, -1}, {0x81, -127}, {0xFB, -5},
	}
	for _, c := range cases {
		v := int(c.raw)
		if v > 127 {
			v -= 256
		}
		if v != c.want {
			t.Errorf("decode 0x%02X = %d, want %d", c.raw, v, c.want)
		}
	}
}
