// ABOUTME: Battery gauge mapping averaged cell voltage to a percent ladder
// ABOUTME: One-step hysteresis keeps the displayed figure from flapping
package battery

import "log"

// Ladder thresholds for a single LiPo cell, volts descending, and the
// percent shown at or above each step.
var (
	voltSteps    = []float64{4.02, 3.95, 3.84, 3.725, 3.675, 3.64, 3.59}
	percentSteps = []int{100, 80, 60, 40, 20, 10, 0}
)

const (
	hysteresisV = 0.030
	avgSamples  = 8
)

// VoltageReader yields one raw cell-voltage sample.
type VoltageReader interface {
	ReadVoltage() (float64, error)
}

// Gauge converts voltage samples into a stable percentage.
type Gauge struct {
	reader  VoltageReader
	lowV    float64
	lastIdx int // ladder index last reported, -1 before first read
}

// NewGauge builds a gauge. lowVolts is the is-low compare threshold.
func NewGauge(r VoltageReader, lowVolts float64) *Gauge {
	return &Gauge{reader: r, lowV: lowVolts, lastIdx: -1}
}

// averaged reads several samples and averages them to tame ADC noise.
func (g *Gauge) averaged() (float64, error) {
	var sum float64
	for i := 0; i < avgSamples; i++ {
		v, err := g.reader.ReadVoltage()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / avgSamples, nil
}

// ladderIndex finds the first step the voltage clears.
func ladderIndex(v float64) int {
	for i, step := range voltSteps {
		if v >= step {
			return i
		}
	}
	return len(voltSteps) - 1
}

// Percent reports the battery charge. A reading only moves the reported
// step when it clears the neighboring threshold by the hysteresis margin,
// so a cell sitting right on a boundary does not flap between two figures.
func (g *Gauge) Percent() (int, error) {
	v, err := g.averaged()
	if err != nil {
		return 0, err
	}
	idx := ladderIndex(v)

	if g.lastIdx >= 0 && idx != g.lastIdx {
		if idx < g.lastIdx {
			// Moving up the ladder: need the higher threshold plus margin.
			if v < voltSteps[g.lastIdx-1]+hysteresisV {
				idx = g.lastIdx
			} else {
				idx = g.lastIdx - 1
			}
		} else {
			// Moving down: need to fall below the current step by the margin.
			if v > voltSteps[g.lastIdx]-hysteresisV {
				idx = g.lastIdx
			} else {
				idx = g.lastIdx + 1
			}
		}
	}

	if idx != g.lastIdx {
		log.Printf("[BATT] %.3fV -> %d%%", v, percentSteps[idx])
	}
	g.lastIdx = idx
	return percentSteps[idx], nil
}

// IsLow compares the averaged voltage against the configured minimum.
func (g *Gauge) IsLow() (bool, error) {
	v, err := g.averaged()
	if err != nil {
		return false, err
	}
	return v < g.lowV, nil
}
