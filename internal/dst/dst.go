// ABOUTME: Daylight-saving rule engine
// ABOUTME: Pure civil-time lookup: region + UTC epoch -> UTC offset in hours
package dst

import "time"

// Transition describes one DST boundary as "nth or last weekday of month at hour".
type Transition struct {
	Month   time.Month
	Which   string // "1st", "2nd", "3rd", "4th" or "last"
	Weekday time.Weekday
	Hour    int
}

// Rule is a per-region DST rule. A nil Start or End means no DST.
type Rule struct {
	Start         *Transition
	End           *Transition
	OffsetSeconds int
}

// Rules is the built-in region table. "NONE" is the identity rule.
var Rules = map[string]Rule{
	"EU": {
		Start:         &Transition{time.March, "last", time.Sunday, 2},
		End:           &Transition{time.October, "last", time.Sunday, 3},
		OffsetSeconds: 3600,
	},
	"US": {
		Start:         &Transition{time.March, "2nd", time.Sunday, 2},
		End:           &Transition{time.November, "1st", time.Sunday, 2},
		OffsetSeconds: 3600,
	},
	// Southern hemisphere: the DST interval wraps the calendar year.
	"AU": {
		Start:         &Transition{time.October, "1st", time.Sunday, 2},
		End:           &Transition{time.April, "1st", time.Sunday, 3},
		OffsetSeconds: 3600,
	},
	"NONE": {},
}

// Engine resolves local UTC offsets for a fixed region.
type Engine struct {
	BaseOffsetHours int
	Enabled         bool
	Region          string
}

// OffsetHours returns the UTC offset in hours at the given UTC epoch,
// including the DST shift when the rule is in effect.
func (e Engine) OffsetHours(utcEpoch int64) int {
	if !e.Enabled {
		return e.BaseOffsetHours
	}

	rule, ok := Rules[e.Region]
	if !ok {
		rule = Rules["NONE"]
	}
	if rule.Start == nil || rule.End == nil {
		return e.BaseOffsetHours
	}

	t := time.Unix(utcEpoch, 0).UTC()
	if inEffect(rule, t) {
		return e.BaseOffsetHours + rule.OffsetSeconds/3600
	}
	return e.BaseOffsetHours
}

// inEffect reports whether t falls inside [start, end). When the start month
// is after the end month (southern hemisphere) the active interval is the
// complement of the northern-style in-range test.
func inEffect(rule Rule, t time.Time) bool {
	year, month, day := t.Year(), t.Month(), t.Day()
	hour := t.Hour()

	startDay := TransitionDay(year, *rule.Start)
	endDay := TransitionDay(year, *rule.End)

	sm, em := rule.Start.Month, rule.End.Month

	if sm < em { // northern hemisphere (EU, US)
		return (month > sm && month < em) ||
			(month == sm && (day > startDay || (day == startDay && hour >= rule.Start.Hour))) ||
			(month == em && (day < endDay || (day == endDay && hour < rule.End.Hour)))
	}

	// southern hemisphere (AU): outside [end, start) means DST
	outside := (month > em && month < sm) ||
		(month == em && (day > endDay || (day == endDay && hour >= rule.End.Hour))) ||
		(month == sm && (day < startDay || (day == startDay && hour < rule.Start.Hour)))
	return !outside
}

// TransitionDay resolves the day-of-month for a transition in a given year.
func TransitionDay(year int, tr Transition) int {
	last := daysIn(year, tr.Month)

	if tr.Which == "last" {
		for d := last; d > last-7; d-- {
			if weekdayOf(year, tr.Month, d) == tr.Weekday {
				return d
			}
		}
		return 1
	}

	nth := map[string]int{"1st": 0, "2nd": 1, "3rd": 2, "4th": 3}[tr.Which]
	for d := 1; d <= 7; d++ {
		if weekdayOf(year, tr.Month, d) == tr.Weekday {
			return d + nth*7
		}
	}
	return 1
}

func weekdayOf(year int, month time.Month, day int) time.Weekday {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Weekday()
}

func daysIn(year int, month time.Month) int {
	switch month {
	case time.January, time.March, time.May, time.July, time.August, time.October, time.December:
		return 31
	case time.February:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	default:
		return 30
	}
}
