// ABOUTME: Drift measurement and aging-register calibration engine
// ABOUTME: Damped ppm correction with read-after-write verification
package calib

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/InkClock-Project/inkclock-go/internal/rtc"
	"github.com/InkClock-Project/inkclock-go/internal/store"
)

// ErrNoElapsed means the reference interval was zero or negative, so no
// drift rate can be derived from it.
var ErrNoElapsed = errors.New("calib: non-positive reference interval")

const verifyAttempts = 3

// Drift is one measured drift figure between two reference syncs.
type Drift struct {
	Seconds float64 // how far the backup clock ran ahead (+) or behind (-)
	PPM     float64 // the same figure as a rate
}

// Measure derives the drift rate from two elapsed intervals covering the same
// real-time span: one counted by the backup clock, one by the reference.
func Measure(elapsedBackupS, elapsedRefS float64) (Drift, error) {
	if elapsedRefS <= 0 {
		return Drift{}, fmt.Errorf("%w: %.3fs", ErrNoElapsed, elapsedRefS)
	}
	diff := elapsedBackupS - elapsedRefS
	return Drift{
		Seconds: diff,
		PPM:     1e6 * diff / elapsedRefS,
	}, nil
}

// AgingWriter is the slice of the backup clock the engine needs.
type AgingWriter interface {
	ReadAging() (int, error)
	WriteAging(v int) error
}

// Engine applies damped corrections to the backup clock's trim register and
// keeps the persistent copy in sync. One correction per reference sync.
type Engine struct {
	Dev     AgingWriter
	Store   store.Store
	Damping float64 // fraction of the measured ppm applied per correction
}

// Apply folds a measured drift into the trim register. The correction is
// damped, rounded half away from zero, and clamped to the register range.
// The persistent copy is updated only after the device confirms the write.
// Returns the new aging value.
func (e *Engine) Apply(d Drift) (int, error) {
	current, err := e.Dev.ReadAging()
	if err != nil {
		return 0, fmt.Errorf("calib: read current aging: %w", err)
	}

	delta := int(math.Round(e.Damping * d.PPM))
	next := rtc.ClampAging(current + delta)
	if next == current {
		log.Printf("[CALIB] drift %.2f ppm, aging unchanged at %d", d.PPM, current)
		return current, nil
	}

	if err := e.writeVerified(next); err != nil {
		return current, err
	}
	if err := store.SetInt(e.Store, store.KeyAging, next); err != nil {
		return next, fmt.Errorf("calib: persist aging: %w", err)
	}
	log.Printf("[CALIB] drift %.2f ppm, aging %d -> %d", d.PPM, current, next)
	return next, nil
}

// writeVerified writes the register and reads it back, retrying the pair up
// to the verify budget.
func (e *Engine) writeVerified(v int) error {
	var last error
	for i := 0; i < verifyAttempts; i++ {
		if err := e.Dev.WriteAging(v); err != nil {
			last = err
			continue
		}
		got, err := e.Dev.ReadAging()
		if err != nil {
			last = err
			continue
		}
		if got == v {
			return nil
		}
		last = fmt.Errorf("%w: wrote %d, read %d", rtc.ErrVerifyMismatch, v, got)
	}
	return fmt.Errorf("calib: write aging: %w", last)
}

// Reconcile aligns the trim register with the persistent copy at boot. The
// register does not survive a backup power loss, so the persistent copy is
// the authority when they disagree.
func (e *Engine) Reconcile() (int, error) {
	stored, ok := store.GetInt(e.Store, store.KeyAging)
	if !ok {
		// First boot: adopt whatever the register holds.
		reg, rerr := e.Dev.ReadAging()
		if rerr != nil {
			return 0, fmt.Errorf("calib: read aging at first boot: %w", rerr)
		}
		if serr := store.SetInt(e.Store, store.KeyAging, reg); serr != nil {
			return reg, fmt.Errorf("calib: persist first-boot aging: %w", serr)
		}
		return reg, nil
	}

	stored = rtc.ClampAging(stored)
	reg, err := e.Dev.ReadAging()
	if err != nil {
		return stored, fmt.Errorf("calib: read aging register: %w", err)
	}
	if reg != stored {
		log.Printf("[CALIB] aging register %d disagrees with stored %d, restoring", reg, stored)
		if err := e.writeVerified(stored); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// Reset zeroes the trim register and the persistent copy. Bound to the
// long-hold manual control.
func (e *Engine) Reset() error {
	if err := e.writeVerified(0); err != nil {
		return err
	}
	if err := store.SetInt(e.Store, store.KeyAging, 0); err != nil {
		return fmt.Errorf("calib: persist aging reset: %w", err)
	}
	log.Print("[CALIB] aging factor reset to 0")
	return nil
}
