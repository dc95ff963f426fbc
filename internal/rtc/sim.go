// ABOUTME: In-memory backup clock simulator with configurable drift and faults
// ABOUTME: Used by tests and the desktop build where no I2C bus exists
package rtc

import (
	"sync"
	"time"
)

// Sim is a Device backed by process memory. A drift rate in ppm lets tests
// and the desktop build exercise calibration without hardware.
type Sim struct {
	mu sync.Mutex

	base     time.Time // value written at anchor
	anchor   time.Time // wall time of the last WriteTime
	DriftPPM float64

	aging int
	temp  float64

	// FailReads/FailWrites make the next N operations fail, for exercising
	// the guard's retry path.
	FailReads  int
	FailWrites int

	now func() time.Time
}

// NewSim starts a simulator tracking wall time with zero drift.
func NewSim() *Sim {
	n := time.Now().UTC()
	return &Sim{base: n, anchor: n, temp: 21.5, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Sim) ReadTime() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads > 0 {
		s.FailReads--
		return time.Time{}, ErrUnresponsive
	}
	elapsed := s.now().Sub(s.anchor)
	drifted := elapsed + time.Duration(float64(elapsed)*s.DriftPPM/1e6)
	return s.base.Add(drifted).Truncate(time.Second), nil
}

func (s *Sim) WriteTime(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites > 0 {
		s.FailWrites--
		return ErrUnresponsive
	}
	s.base = t.Truncate(time.Second)
	s.anchor = s.now()
	return nil
}

func (s *Sim) ReadAging() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads > 0 {
		s.FailReads--
		return 0, ErrUnresponsive
	}
	return s.aging, nil
}

func (s *Sim) WriteAging(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites > 0 {
		s.FailWrites--
		return ErrUnresponsive
	}
	s.aging = ClampAging(v)
	return nil
}

func (s *Sim) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads > 0 {
		s.FailReads--
		return 0, ErrUnresponsive
	}
	return s.temp, nil
}

// SetTemperature adjusts the reported die temperature.
func (s *Sim) SetTemperature(c float64) {
	s.mu.Lock()
	s.temp = c
	s.mu.Unlock()
}
