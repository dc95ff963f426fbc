// ABOUTME: Orchestrator tests covering clock writes, calibration gating, refresh
// ABOUTME: Drives internal cycle steps directly against simulated hardware
package app

import (
	"testing"
	"time"

	"github.com/InkClock-Project/inkclock-go/internal/config"
	"github.com/InkClock-Project/inkclock-go/internal/display"
	"github.com/InkClock-Project/inkclock-go/internal/ntp"
	"github.com/InkClock-Project/inkclock-go/internal/rtc"
	"github.com/InkClock-Project/inkclock-go/internal/store"
	"github.com/InkClock-Project/inkclock-go/internal/wifi"
)

type fixture struct {
	clock *Clock
	sim   *rtc.Sim
	st    *store.MemStore
	rec   *display.Recorder
	now   int64 // fake tick, ms
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Battery.Enabled = false
	sim := rtc.NewSim()
	st := store.NewMemStore()
	rec := &display.Recorder{}

	f := &fixture{sim: sim, st: st, rec: rec}
	f.clock = New(Deps{
		Config:  cfg,
		Store:   st,
		Backup:  rtc.NewGuard(sim, nil, nil),
		Radio:   wifi.NewSimRadio(),
		Display: rec,
	})
	f.clock.tick = func() int64 { return f.now }
	return f
}

func TestWriteBackupClockAppliesOffsetAndDelay(t *testing.T) {
	f := newFixture(t)
	// Mid-January: EU rule inactive, offset is the base +1h.
	epoch := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC).Unix()
	f.now = 10_000
	s := ntp.Sample{EpochS: epoch, FractionalMs: 600, ReceiptTick: 9_400}

	if err := f.clock.writeBackupClock(s); err != nil {
		t.Fatalf("writeBackupClock: %v", err)
	}

	// delay = 600 fractional + 600 since receipt -> rounds to 1s.
	got, err := f.sim.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	want := epoch + 1 + 3600
	if got.Unix() != want {
		t.Errorf("device epoch = %d, want %d", got.Unix(), want)
	}
	if tz, ok := store.GetInt(f.st, store.KeyTzDst); !ok || tz != 1 {
		t.Errorf("stored offset = %d (ok=%v), want 1", tz, ok)
	}
}

func TestWriteBackupClockSummerOffset(t *testing.T) {
	f := newFixture(t)
	epoch := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC).Unix()
	s := ntp.Sample{EpochS: epoch, ReceiptTick: 0}
	if err := f.clock.writeBackupClock(s); err != nil {
		t.Fatalf("writeBackupClock: %v", err)
	}
	if tz, _ := store.GetInt(f.st, store.KeyTzDst); tz != 2 {
		t.Errorf("stored offset = %d, want 2 (base 1 + DST)", tz)
	}
}

// The sync cycle rewrites the device and the stored offset as part of the
// same commit that measures drift, so the measurement must come from the
// device's pre-sync reading, not the freshly stepped one.
func TestSyncCycleCalibratesWeekLongDrift(t *testing.T) {
	f := newFixture(t)
	const week = 7 * 86400

	last := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Unix()
	f.clock.lastNtpEpochS = last
	f.clock.enableCal = true
	store.SetInt(f.st, store.KeyTzDst, 1)

	// Backup clock ran 3s fast over the week; it holds local time (+1h).
	nowEpoch := last + week
	f.sim.WriteTime(time.Unix(nowEpoch+3+3600, 0).UTC())

	if err := f.clock.applySync("t", ntp.Sample{EpochS: nowEpoch}); err != nil {
		t.Fatalf("applySync: %v", err)
	}

	if f.clock.aging != 4 {
		t.Errorf("aging = %d, want 4 (damped, rounded)", f.clock.aging)
	}
	if reg, _ := f.sim.ReadAging(); reg != 4 {
		t.Errorf("register = %d, want 4", reg)
	}
	if f.clock.lastNtpEpochS != nowEpoch {
		t.Errorf("reference fix = %d, want %d", f.clock.lastNtpEpochS, nowEpoch)
	}
	if f.clock.enableCal {
		t.Error("gate should close after the cycle")
	}

	got, err := f.sim.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if got.Unix() != nowEpoch+3600 {
		t.Errorf("device epoch = %d, want stepped to %d", got.Unix(), nowEpoch+3600)
	}
}

// A DST transition between fixes must not corrupt the measurement: the
// elapsed device time is reconstructed with the offset at the previous
// write, even though the cycle is about to store a new one.
func TestSyncCycleCalibratesAcrossOffsetChange(t *testing.T) {
	f := newFixture(t)
	const week = 7 * 86400

	// Late March: the cycle lands after the EU spring-forward, so the
	// fresh write uses +2h while the device was written with +1h.
	last := time.Date(2025, 3, 25, 12, 0, 0, 0, time.UTC).Unix()
	f.clock.lastNtpEpochS = last
	f.clock.enableCal = true
	store.SetInt(f.st, store.KeyTzDst, 1)

	nowEpoch := last + week
	f.sim.WriteTime(time.Unix(nowEpoch+3+3600, 0).UTC())

	if err := f.clock.applySync("t", ntp.Sample{EpochS: nowEpoch}); err != nil {
		t.Fatalf("applySync: %v", err)
	}

	if f.clock.aging != 4 {
		t.Errorf("aging = %d, want 4", f.clock.aging)
	}
	if tz, _ := store.GetInt(f.st, store.KeyTzDst); tz != 2 {
		t.Errorf("stored offset = %d, want refreshed to 2", tz)
	}
}

func TestSyncCycleDisabledOnlyAdjustsTime(t *testing.T) {
	f := newFixture(t)
	last := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Unix()
	f.clock.lastNtpEpochS = last
	f.clock.enableCal = false
	store.SetInt(f.st, store.KeyTzDst, 1)
	f.sim.WriteTime(time.Unix(last+86400+2+3600, 0).UTC())

	if err := f.clock.applySync("t", ntp.Sample{EpochS: last + 86400}); err != nil {
		t.Fatalf("applySync: %v", err)
	}

	if f.clock.aging != 0 {
		t.Errorf("aging = %d, want unchanged 0", f.clock.aging)
	}
	if f.clock.lastStatus != "ADJUSTED TIME, NO CAL" {
		t.Errorf("status = %q", f.clock.lastStatus)
	}
}

func TestSyncCycleSkipsCalibrationWithoutPriorFix(t *testing.T) {
	f := newFixture(t)
	f.clock.enableCal = true
	if err := f.clock.applySync("t", ntp.Sample{EpochS: 1000}); err != nil {
		t.Fatalf("applySync: %v", err)
	}
	if f.clock.aging != 0 {
		t.Errorf("aging = %d, want 0 with no prior fix", f.clock.aging)
	}
	if f.clock.lastNtpEpochS != 1000 {
		t.Errorf("reference fix = %d, want adopted 1000", f.clock.lastNtpEpochS)
	}
}

func TestPeriodicChecksGateCalibration(t *testing.T) {
	f := newFixture(t)
	f.clock.cfg.Calibration.MinHours = 2

	hour := int64(hourMs + 1)
	var now int64
	for i := 0; i < 2; i++ {
		now += hour
		f.clock.periodicChecks(now)
	}
	if f.clock.hourlyCounter != 2 {
		t.Fatalf("hourlyCounter = %d, want 2", f.clock.hourlyCounter)
	}
	if !f.clock.enableCal {
		t.Fatal("calibration gate should open at MinHours")
	}

	// Well past the gate the counter holds just above it.
	for i := 0; i < 5; i++ {
		now += hour
		f.clock.periodicChecks(now)
	}
	if f.clock.hourlyCounter != 3 {
		t.Errorf("hourlyCounter = %d, want held at 3", f.clock.hourlyCounter)
	}
}

func TestRefreshCycleFullWashOnRoundHour(t *testing.T) {
	f := newFixture(t)
	f.sim.WriteTime(time.Date(2025, 5, 10, 9, 0, 2, 0, time.UTC))

	d := f.clock.refreshCycle()
	if len(f.rec.Frames) != 1 {
		t.Fatalf("frames rendered = %d, want 1", len(f.rec.Frames))
	}
	if !f.rec.Frames[0].FullWash {
		t.Error("minute 0 should request a full wash")
	}
	if d < 0 {
		t.Errorf("sleep = %v, want >= 0", d)
	}

	f.sim.WriteTime(time.Date(2025, 5, 10, 9, 1, 2, 0, time.UTC))
	f.clock.refreshCycle()
	if f.rec.Frames[1].FullWash {
		t.Error("minute 1 should be a partial update")
	}
}

func TestRefreshCycleSurvivesDeadDevice(t *testing.T) {
	f := newFixture(t)
	f.sim.FailReads = 50 // guard exhausts its budget

	d := f.clock.refreshCycle()
	if d != time.Duration(f.clock.cfg.Display.RefreshMs)*time.Millisecond {
		t.Errorf("fallback sleep = %v, want nominal interval", d)
	}
	if f.clock.lastStatus != "REPLACE BACKUP BATT." {
		t.Errorf("status = %q", f.clock.lastStatus)
	}
}
