// ABOUTME: Headless render surface that writes frames to the log
// ABOUTME: Used with -no-tui and in tests
package display

import "log"

// LogDisplay satisfies Display without a panel; each frame becomes one
// log line.
type LogDisplay struct{}

func (LogDisplay) Render(f Frame) error {
	meridiem := ""
	if f.ShowAMPM {
		meridiem = "PM"
		if f.AM {
			meridiem = "AM"
		}
	}
	log.Printf("[EPD] %c%c:%c%c%s %s %s | %s aging=%d batt=%d%%",
		f.HourTens, f.HourOnes, f.MinuteTens, f.MinuteOnes, meridiem,
		f.Weekday, f.DateLine, f.Status, f.Aging, f.BatteryPC)
	return nil
}

func (LogDisplay) Close() error { return nil }

// Recorder captures frames for assertions.
type Recorder struct {
	Frames []Frame
}

func (r *Recorder) Render(f Frame) error {
	r.Frames = append(r.Frames, f)
	return nil
}

func (r *Recorder) Close() error { return nil }
