// ABOUTME: Backup clock device interface and transiently-powered access guard
// ABOUTME: Scoped power-up/transact/power-down with escalating settle retries
package rtc

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Typed failures surfaced by backup-clock access.
var (
	// ErrUnresponsive: the device stayed silent through the whole retry
	// budget. The usual cause on hardware is a dead backup cell.
	ErrUnresponsive = errors.New("rtc: device unresponsive")
	// ErrVerifyMismatch: a read-after-write came back with a different value.
	ErrVerifyMismatch = errors.New("rtc: read-after-write mismatch")
)

// AgingMin and AgingMax bound the frequency-trim register, ~1 ppm per unit.
const (
	AgingMin = -127
	AgingMax = 127
)

// ClampAging saturates a value into the trim register's signed range.
func ClampAging(v int) int {
	if v < AgingMin {
		return AgingMin
	}
	if v > AgingMax {
		return AgingMax
	}
	return v
}

// Device is the capability set of the backup hardware clock. The chip keeps
// whatever wall time it is given; the orchestrator writes local time and
// persists the UTC offset applied at that moment. Every call may fail
// recoverably (device unpowered or absent).
type Device interface {
	ReadTime() (time.Time, error)
	WriteTime(t time.Time) error
	ReadAging() (int, error)
	WriteAging(v int) error
	ReadTemperature() (float64, error)
}

// PowerControl drives the rail that energizes the clock for one transaction.
type PowerControl interface {
	PowerOn() error
	PowerOff() error
}

// NoPower is a PowerControl for devices that are permanently powered
// (simulators, bench setups).
type NoPower struct{}

func (NoPower) PowerOn() error  { return nil }
func (NoPower) PowerOff() error { return nil }

const (
	firstSettle  = 5 * time.Millisecond
	retryBudget  = 5
	settleStepMs = 10
)

// Guard wraps a Device so that every transaction is a scoped
// power-up / settle / transact / power-down sequence. On failure the settle
// delay escalates ((i+1)*10ms) up to the retry budget; the rail is always
// dropped, including on error paths.
type Guard struct {
	dev   Device
	power PowerControl
	sleep func(time.Duration)
	feed  func(label string)
}

// NewGuard builds a Guard. power may be nil (permanently powered device);
// feed may be nil when no watchdog is wired.
func NewGuard(dev Device, power PowerControl, feed func(string)) *Guard {
	if power == nil {
		power = NoPower{}
	}
	if feed == nil {
		feed = func(string) {}
	}
	return &Guard{dev: dev, power: power, sleep: time.Sleep, feed: feed}
}

// transact runs op once under power with the given settle delay.
func (g *Guard) transact(settle time.Duration, op func() error) error {
	if err := g.power.PowerOn(); err != nil {
		return fmt.Errorf("rtc: power up: %w", err)
	}
	g.sleep(settle)
	err := op()
	if offErr := g.power.PowerOff(); offErr != nil && err == nil {
		err = fmt.Errorf("rtc: power down: %w", offErr)
	}
	return err
}

// retry runs op with the first settle, then escalating settles.
func (g *Guard) retry(label string, op func() error) error {
	err := g.transact(firstSettle, op)
	if err == nil {
		return nil
	}

	for i := 0; i < retryBudget; i++ {
		g.feed(label)
		settle := time.Duration(i+1) * settleStepMs * time.Millisecond
		if err = g.transact(settle, op); err == nil {
			log.Printf("[RTC] %s recovered at retry %d/%d", label, i+1, retryBudget)
			return nil
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrUnresponsive, label, err)
}

// ReadTime reads the clock under the power guard.
func (g *Guard) ReadTime() (time.Time, error) {
	var t time.Time
	err := g.retry("read-time", func() error {
		var e error
		t, e = g.dev.ReadTime()
		return e
	})
	return t, err
}

// WriteTime writes the clock under the power guard.
func (g *Guard) WriteTime(t time.Time) error {
	return g.retry("write-time", func() error { return g.dev.WriteTime(t) })
}

// ReadAging reads the trim register under the power guard.
func (g *Guard) ReadAging() (int, error) {
	var v int
	err := g.retry("read-aging", func() error {
		var e error
		v, e = g.dev.ReadAging()
		return e
	})
	return v, err
}

// WriteAging writes the trim register under the power guard. The value is
// clamped; verification is the calibration engine's job.
func (g *Guard) WriteAging(v int) error {
	v = ClampAging(v)
	return g.retry("write-aging", func() error { return g.dev.WriteAging(v) })
}

// ReadTemperature reads the die temperature under the power guard.
func (g *Guard) ReadTemperature() (float64, error) {
	var v float64
	err := g.retry("read-temperature", func() error {
		var e error
		v, e = g.dev.ReadTemperature()
		return e
	})
	return v, err
}
