// ABOUTME: Sync orchestrator owning all persistent clock state
// ABOUTME: Boot sequence, sync cycles, calibration gating and the refresh loop
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/InkClock-Project/inkclock-go/internal/battery"
	"github.com/InkClock-Project/inkclock-go/internal/calib"
	"github.com/InkClock-Project/inkclock-go/internal/config"
	"github.com/InkClock-Project/inkclock-go/internal/display"
	"github.com/InkClock-Project/inkclock-go/internal/dst"
	"github.com/InkClock-Project/inkclock-go/internal/monitor"
	"github.com/InkClock-Project/inkclock-go/internal/ntp"
	"github.com/InkClock-Project/inkclock-go/internal/rtc"
	"github.com/InkClock-Project/inkclock-go/internal/sched"
	"github.com/InkClock-Project/inkclock-go/internal/store"
	"github.com/InkClock-Project/inkclock-go/internal/ui"
	"github.com/InkClock-Project/inkclock-go/internal/watchdog"
	"github.com/InkClock-Project/inkclock-go/internal/wifi"
)

const (
	halfHourMs = 1_800_000
	hourMs     = 3_600_000
)

// ErrBootFailed means the clock cannot establish a trusted time base and
// must not keep running.
var ErrBootFailed = errors.New("app: boot failed")

// Deps are the collaborators the orchestrator drives. Battery, Monitor,
// Watchdog, Buttons and Resolver may be nil.
type Deps struct {
	Config   *config.Config
	Store    store.Store
	Backup   *rtc.Guard
	Radio    wifi.Radio
	Display  display.Display
	Battery  *battery.Gauge
	Monitor  *monitor.Monitor
	Watchdog *watchdog.Watchdog
	Buttons  <-chan ui.PressMsg
	Resolver ntp.Resolver
}

// Clock is the orchestrator. All persisted and cycle state lives here;
// components receive it for one cycle and hand back an updated value.
type Clock struct {
	cfg   *config.Config
	st    store.Store
	dev   *rtc.Guard
	wm    *wifi.Manager
	disp  display.Display
	gauge *battery.Gauge
	mon   *monitor.Monitor
	wdt   *watchdog.Watchdog

	buttons  <-chan ui.PressMsg
	resolver ntp.Resolver

	client *ntp.Client
	zone   dst.Engine
	cal    *calib.Engine
	sch    *sched.State

	servers map[string]string // hostname -> resolved address

	// CalibrationState
	aging         int
	lastNtpEpochS int64
	hourlyCounter int
	enableCal     bool

	// cycle state
	lastStatus string
	tempC      float64
	battPC     int
	battLow    bool
	cycles     int

	lastHalfHourTick int64
	lastHourlyTick   int64

	tick func() int64 // monotonic-ish ms
}

// New wires the orchestrator from its collaborators.
func New(d Deps) *Clock {
	cfg := d.Config
	c := &Clock{
		cfg:      cfg,
		st:       d.Store,
		dev:      d.Backup,
		disp:     d.Display,
		gauge:    d.Battery,
		mon:      d.Monitor,
		wdt:      d.Watchdog,
		buttons:  d.Buttons,
		resolver: d.Resolver,
		servers:  map[string]string{},
		tick:     func() int64 { return time.Now().UnixMilli() },
	}
	if c.resolver == nil {
		c.resolver = net.DefaultResolver
	}
	c.wm = wifi.NewManager(d.Radio, cfg.Credentials(), cfg.OpenNetworks, c.feed)
	c.client = &ntp.Client{
		Attempts:    cfg.NTP.AttemptsPerServer,
		MaxOffsetMs: cfg.NTP.MaxOffsetMs,
		Timeout:     time.Duration(cfg.NTP.TimeoutMs) * time.Millisecond,
		Feed:        c.feed,
	}
	c.zone = dst.Engine{
		BaseOffsetHours: cfg.Time.UTCOffsetHours,
		Enabled:         cfg.Time.DSTEnabled,
		Region:          cfg.Time.DSTRegion,
	}
	c.cal = &calib.Engine{Dev: c.dev, Store: c.st, Damping: cfg.Calibration.Damping}
	c.sch = sched.New(cfg.Display.RefreshMs, cfg.Scheduler.TargetMs)
	return c
}

func (c *Clock) feed(label string) {
	if c.wdt != nil {
		c.wdt.Feed(label)
	}
}

func (c *Clock) splash(status string) {
	c.lastStatus = status
	log.Printf("[APP] %s", status)
}

// Boot establishes the trusted time base. Failure here is fatal: an
// uncorrected backup clock would display wrong time indefinitely.
func (c *Clock) Boot(ctx context.Context) error {
	c.splash("WIFI CONNECTION ...")
	c.feed("boot-wifi")

	aging, err := c.cal.Reconcile()
	if err != nil {
		log.Printf("[APP] aging reconcile: %v", err)
	}
	c.aging = aging

	if _, err := c.wm.Connect(true); err != nil {
		c.splash("ERROR: WIFI NETWORKS")
		return fmt.Errorf("%w: wifi: %v", ErrBootFailed, err)
	}

	if !ntp.CheckInternet(ctx, c.resolver, c.cfg.NTP.Servers, 5, c.feed) {
		c.splash("ERROR: NO INTERNET")
		return fmt.Errorf("%w: no internet access", ErrBootFailed)
	}

	order := c.serverOrder()
	c.servers = ntp.ResolveServers(ctx, c.resolver, order, 5, true, c.feed)
	if len(c.servers) == 0 {
		c.splash("ERROR: NTP DNS")
		return fmt.Errorf("%w: no NTP server resolved", ErrBootFailed)
	}

	c.splash("NTP SYNCING ...")
	sample, err := c.client.Query(order, c.servers)
	if err != nil {
		return fmt.Errorf("%w: first sync: %v", ErrBootFailed, err)
	}
	if err := c.writeBackupClock(sample); err != nil {
		c.splash("REPLACE BACKUP BATT.")
		return fmt.Errorf("%w: %v", ErrBootFailed, err)
	}
	c.lastNtpEpochS = sample.EpochS
	c.publish(monitor.Event{Type: "sync", Server: sample.Server,
		OffsetMs: sample.OffsetMs, LatencyMs: sample.LatencyMs, Aging: c.aging})

	if c.gauge != nil {
		c.readBattery()
	}
	c.readTemperature()

	now := c.tick()
	c.lastHalfHourTick = now
	c.lastHourlyTick = now
	c.sch.MarkUpdate(now)
	c.splash("SYNCED")
	log.Printf("[APP] boot complete, aging=%d", c.aging)
	return nil
}

// serverOrder returns the priority list for one sync cycle, with any locally
// discovered time servers ahead of the configured pool. Discovered entries
// are literal "ip:port" endpoints; ResolveServers passes them through
// without a DNS lookup.
func (c *Clock) serverOrder() []string {
	if !c.cfg.Discovery.Enabled {
		return c.cfg.NTP.Servers
	}
	local := wifi.DiscoverNTPServers(time.Duration(c.cfg.Discovery.TimeoutMs) * time.Millisecond)
	return append(local, c.cfg.NTP.Servers...)
}

// Run is the main loop: wake on the scheduler's cadence, refresh the
// display, handle button gestures between wakes.
func (c *Clock) Run(ctx context.Context) error {
	wake := time.NewTimer(0) // first refresh immediately
	defer wake.Stop()

	for {
		c.feed("loop-start")
		select {
		case <-ctx.Done():
			return nil

		case press, ok := <-c.buttonCh():
			if !ok {
				return nil
			}
			c.handlePress(ctx, press)
			wake.Reset(c.refreshCycle())

		case <-wake.C:
			now := c.tick()
			c.periodicChecks(now)
			wake.Reset(c.refreshCycle())
		}
	}
}

// buttonCh keeps the select valid when no button source is wired.
func (c *Clock) buttonCh() <-chan ui.PressMsg {
	if c.buttons != nil {
		return c.buttons
	}
	// nil channel: blocks forever, the timer drives the loop
	return nil
}

func (c *Clock) handlePress(ctx context.Context, press ui.PressMsg) {
	switch press.Kind {
	case ui.PressReset:
		// Long hold: manual escape hatch, no drift math involved.
		if err := c.cal.Reset(); err != nil {
			log.Printf("[APP] aging reset: %v", err)
			c.splash("RESET FAILED")
			return
		}
		c.aging = 0
		c.splash("RESET CALIBRATION")
		c.publish(monitor.Event{Type: "calibration", Aging: 0, Message: "manual reset"})

	case ui.PressSync:
		c.SyncNow(ctx)
	}
}

// SyncNow is the on-demand path: one non-blocking connectivity pass, fresh
// DNS, one sync. A failure aborts the cycle and keeps the previous time base.
func (c *Clock) SyncNow(ctx context.Context) {
	cycleID := uuid.New().String()[:8]
	c.splash("GET SERVERS IP ...")
	c.feed("sync-start")

	if !c.wm.IsUp() {
		if _, err := c.wm.Connect(false); err != nil {
			c.splash("CHECK WIFI NETWORKS")
			c.publish(monitor.Event{CycleID: cycleID, Type: "error", Message: "wifi: " + err.Error()})
			return
		}
	}

	order := c.serverOrder()
	fresh := ntp.ResolveServers(ctx, c.resolver, order, 5, false, c.feed)
	if len(fresh) > 0 {
		c.servers = fresh
	}
	if len(c.servers) == 0 {
		c.splash("NTP SYNC FAILED")
		c.publish(monitor.Event{CycleID: cycleID, Type: "error", Message: "no servers resolved"})
		return
	}

	c.splash("NTP SYNCING ...")
	sample, err := c.client.Query(order, c.servers)
	if err != nil {
		c.splash("NTP SYNC FAILED")
		c.publish(monitor.Event{CycleID: cycleID, Type: "error", Message: err.Error()})
		return
	}

	if err := c.applySync(cycleID, sample); err != nil {
		c.splash("REPLACE BACKUP BATT.")
		c.publish(monitor.Event{CycleID: cycleID, Type: "error", Message: err.Error()})
	}
}

// applySync commits a fresh fix. The device must be read before it is
// rewritten: the drift measurement needs the device's pre-sync reading and
// the offset recorded at the previous write, and the rewrite destroys both.
func (c *Clock) applySync(cycleID string, sample ntp.Sample) error {
	var backupUTC int64
	var readErr error
	if c.lastNtpEpochS != 0 {
		backupUTC, readErr = c.readBackupUTC(sample)
	}

	if err := c.writeBackupClock(sample); err != nil {
		return err
	}
	c.publish(monitor.Event{CycleID: cycleID, Type: "sync", Server: sample.Server,
		OffsetMs: sample.OffsetMs, LatencyMs: sample.LatencyMs})

	c.calibrate(cycleID, sample, backupUTC, readErr)

	// Only now move the reference fix; a failed cycle must leave it alone.
	c.lastNtpEpochS = sample.EpochS
	c.hourlyCounter = 0
	c.enableCal = false
	return nil
}

// readBackupUTC returns the device's idea of UTC. The device holds local
// wall time; undo the offset recorded when it was last written, not
// today's.
func (c *Clock) readBackupUTC(s ntp.Sample) (int64, error) {
	deviceTime, err := c.dev.ReadTime()
	if err != nil {
		return 0, err
	}
	tzAtWrite, ok := store.GetInt(c.st, store.KeyTzDst)
	if !ok {
		tzAtWrite = c.zone.OffsetHours(s.EpochS)
	}
	return deviceTime.Unix() - int64(tzAtWrite)*3600, nil
}

// writeBackupClock stores the sample's local wall time into the device,
// compensating for the code delay since packet receipt, and persists the
// UTC offset applied so later drift math can undo it. The two writes
// happen device-first: the stored offset is only updated after the device
// accepted the time.
func (c *Clock) writeBackupClock(s ntp.Sample) error {
	delayMs := s.FractionalMs + float64(c.tick()-s.ReceiptTick)
	delayS := int64(math.Round(delayMs / 1000))

	offsetH := c.zone.OffsetHours(s.EpochS)
	localEpoch := s.EpochS + delayS + int64(offsetH)*3600

	if err := c.dev.WriteTime(time.Unix(localEpoch, 0).UTC()); err != nil {
		return fmt.Errorf("app: write backup clock: %w", err)
	}
	if err := store.SetInt(c.st, store.KeyTzDst, offsetH); err != nil {
		return fmt.Errorf("app: persist utc offset: %w", err)
	}
	log.Printf("[APP] backup clock set, offset %+dh, delay comp %ds", offsetH, delayS)
	return nil
}

// calibrate folds the drift measured against the device's pre-sync reading
// into the aging register when the elapsed-hours gate is open.
// Single-shot: the gate closes regardless of outcome.
func (c *Clock) calibrate(cycleID string, s ntp.Sample, backupUTC int64, readErr error) {
	if c.lastNtpEpochS == 0 {
		return
	}
	if readErr != nil {
		log.Printf("[APP] calibration read: %v", readErr)
		return
	}

	drift, err := calib.Measure(
		float64(backupUTC-c.lastNtpEpochS),
		float64(s.EpochS-c.lastNtpEpochS),
	)
	if err != nil {
		log.Printf("[APP] drift measure: %v", err)
		return
	}
	c.publish(monitor.Event{CycleID: cycleID, Type: "calibration",
		DriftPPM: drift.PPM, Aging: c.aging})

	if !c.enableCal {
		c.splash("ADJUSTED TIME, NO CAL")
		return
	}

	aging, err := c.cal.Apply(drift)
	if err != nil {
		log.Printf("[APP] calibration: %v", err)
		c.splash("CALIBRATION FAILED")
		return
	}
	c.aging = aging
	c.splash("CALIBRATED CLOCK")
	c.publish(monitor.Event{CycleID: cycleID, Type: "calibration",
		DriftPPM: drift.PPM, Aging: aging})
}

// periodicChecks runs the half-hour temperature read and the hourly
// counters that gate automatic calibration.
func (c *Clock) periodicChecks(nowTick int64) {
	if nowTick-c.lastHalfHourTick <= halfHourMs {
		return
	}
	c.lastHalfHourTick = nowTick
	c.feed("half-hour")
	c.readTemperature()

	if nowTick-c.lastHourlyTick <= hourMs {
		return
	}
	c.lastHourlyTick = nowTick
	c.feed("hourly")
	c.hourlyCounter++

	if c.gauge != nil {
		c.readBattery()
	}

	if c.hourlyCounter >= c.cfg.Calibration.MinHours {
		c.enableCal = true
		// Hold the counter just above the gate so the flag stays armed
		// until a sync consumes it.
		if c.hourlyCounter >= c.cfg.Calibration.MinHours+2 {
			c.hourlyCounter--
		}
	}
}

// refreshCycle redraws the face from the backup clock and returns how long
// to sleep before the next wake.
func (c *Clock) refreshCycle() time.Duration {
	start := c.tick()
	c.feed("refresh")

	deviceTime, err := c.dev.ReadTime()
	if err != nil {
		c.splash("REPLACE BACKUP BATT.")
		log.Printf("[APP] backup clock read: %v", err)
		return time.Duration(c.cfg.Display.RefreshMs) * time.Millisecond
	}

	f := display.BuildFrame(deviceTime, c.cfg.Display.Language, c.cfg.Display.DateFormat,
		c.cfg.Display.Hour12, c.cfg.Display.AMPMLabel)
	f.Status = c.lastStatus
	f.Aging = c.aging
	f.BatteryPC = c.battPC
	f.TempC = c.displayTemp()
	// Full wash on the round hour keeps ghosting off the panel; partial
	// updates the rest of the time save energy.
	f.FullWash = deviceTime.Minute() == 0

	if err := c.disp.Render(f); err != nil {
		log.Printf("[APP] render: %v", err)
	}
	c.cycles++
	c.publish(monitor.Event{Type: "refresh", Aging: c.aging, BatteryPC: c.battPC})

	cycleMs := c.tick() - start
	sleepMs := c.sch.Plan(deviceTime.Second(), cycleMs)
	return time.Duration(sleepMs) * time.Millisecond
}

func (c *Clock) readTemperature() {
	t, err := c.dev.ReadTemperature()
	if err != nil {
		log.Printf("[APP] temperature read: %v", err)
		return
	}
	c.tempC = t
}

func (c *Clock) displayTemp() float64 {
	if c.cfg.Display.Degrees == "F" {
		return c.tempC*9/5 + 32
	}
	return c.tempC
}

func (c *Clock) readBattery() {
	pc, err := c.gauge.Percent()
	if err != nil {
		log.Printf("[APP] battery read: %v", err)
		return
	}
	c.battPC = pc
	low, err := c.gauge.IsLow()
	if err == nil {
		c.battLow = low
	}
	if c.battLow {
		log.Printf("[APP] battery low (%d%%)", pc)
	}
}

func (c *Clock) publish(ev monitor.Event) {
	if c.mon != nil {
		c.mon.Publish(ev)
	}
}

// Close releases the radio and the render surface.
func (c *Clock) Close() {
	c.wm.Disable()
	if c.disp != nil {
		c.disp.Close()
	}
	if c.wdt != nil {
		c.wdt.Stop()
	}
}
