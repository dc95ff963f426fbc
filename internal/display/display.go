// ABOUTME: Display abstraction and wall-clock formatting helpers
// ABOUTME: Time digits, multi-language weekday names, date field ordering
package display

import (
	"fmt"
	"time"
)

// Frame is everything one display refresh shows. Rendering is fire and
// forget; the core never inspects pixel state.
type Frame struct {
	HourTens, HourOnes     byte // '0'..'9'
	MinuteTens, MinuteOnes byte
	AM                     bool
	ShowAMPM               bool

	DateLine string
	Weekday  string

	Status    string // short sync / error message
	Aging     int
	BatteryPC int
	TempC     float64
	FullWash  bool // request a full refresh instead of a partial one
}

// Display is the render surface. Render may block briefly for a hardware
// refresh.
type Display interface {
	Render(f Frame) error
	Close() error
}

// weekdays maps a language code to Monday-first uppercase day names.
// Non-Latin scripts are transliterated; the glyph set on the panel is ASCII.
var weekdays = map[string][7]string{
	"EN": {"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"},
	"ES": {"LUNES", "MARTES", "MIERCOLES", "JUEVES", "VIERNES", "SABADO", "DOMINGO"},
	"FR": {"LUNDI", "MARDI", "MERCREDI", "JEUDI", "VENDREDI", "SAMEDI", "DIMANCHE"},
	"DE": {"MONTAG", "DIENSTAG", "MITTWOCH", "DONNERSTAG", "FREITAG", "SAMSTAG", "SONNTAG"},
	"IT": {"LUNEDI", "MARTEDI", "MERCOLEDI", "GIOVEDI", "VENERDI", "SABATO", "DOMENICA"},
	"PT": {"SEGUNDA", "TERCA", "QUARTA", "QUINTA", "SEXTA", "SABADO", "DOMINGO"},
}

// Weekday returns the localized uppercase day name. Unknown languages fall
// back to English.
func Weekday(lang string, d time.Weekday) string {
	names, ok := weekdays[lang]
	if !ok {
		names = weekdays["EN"]
	}
	// time.Weekday is Sunday-first; the table is Monday-first.
	idx := (int(d) + 6) % 7
	return names[idx]
}

// TimeDigits splits the wall-clock time into individual padded digits,
// converting to 12-hour form when asked. The AM flag is always meaningful
// in 12-hour mode.
func TimeDigits(hour, minute int, hour12 bool) (hT, hO, mT, mO byte, am bool) {
	am = true
	if hour12 {
		switch {
		case hour == 0:
			hour = 12
		case hour >= 12:
			am = false
			if hour > 12 {
				hour -= 12
			}
		}
	}
	hT = byte('0' + hour/10)
	hO = byte('0' + hour%10)
	mT = byte('0' + minute/10)
	mO = byte('0' + minute%10)
	return
}

// DateLine renders the date in the configured field order. Unknown formats
// fall back to day-month-year.
func DateLine(format string, t time.Time) string {
	y, m, d := t.Date()
	switch format {
	case "MDY":
		return fmt.Sprintf("%02d-%02d-%04d", int(m), d, y)
	case "YMD":
		return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
	default: // DMY
		return fmt.Sprintf("%02d-%02d-%04d", d, int(m), y)
	}
}

// BuildFrame assembles a Frame for a local wall-clock instant.
func BuildFrame(t time.Time, lang, dateFormat string, hour12, showAMPM bool) Frame {
	hT, hO, mT, mO, am := TimeDigits(t.Hour(), t.Minute(), hour12)
	return Frame{
		HourTens: hT, HourOnes: hO,
		MinuteTens: mT, MinuteOnes: mO,
		AM:       am,
		ShowAMPM: hour12 && showAMPM,
		DateLine: DateLine(dateFormat, t),
		Weekday:  Weekday(lang, t.Weekday()),
	}
}
