package calendar

import (
	"math"
	"time"

	"visitcal/internal/model"
)

const week = 7 * 24 * time.Hour

// Occurs reports whether ev produces an occurrence on d, before per-date
// cancellations are applied.
//
// Holidays suppress weekly and biweekly visits only; a one-off visit booked on
// a holiday still happens. Unknown recurrence kinds never match.
func Occurs(ev model.Event, d model.Date, holidays model.Holidays) bool {
	if d.Before(ev.AnchorDate) {
		return false
	}
	if ev.EndDate != nil && d.After(*ev.EndDate) {
		return false
	}

	switch ev.Recurrence {
	case model.RecurrenceNone:
		return d == ev.AnchorDate
	case model.RecurrenceWeekly:
		if holidays.IsHoliday(d) {
			return false
		}
		return d.Weekday() == ev.AnchorDate.Weekday()
	case model.RecurrenceBiweekly:
		if holidays.IsHoliday(d) {
			return false
		}
		return d.Weekday() == ev.AnchorDate.Weekday() && WeeksBetween(d, ev.AnchorDate)%2 == 0
	default:
		return false
	}
}

// StartOfWeek returns the Sunday of the week containing d.
func StartOfWeek(d model.Date) model.Date {
	return d.AddDays(-int(d.Weekday()))
}

// WeeksBetween returns the number of Sunday-aligned week buckets between a and
// b. It is symmetric and never negative.
//
// Both dates are normalized to the start of their week and the elapsed time is
// divided by the length of one week and rounded to the nearest integer.
func WeeksBetween(a, b model.Date) int {
	diff := StartOfWeek(a).In(time.UTC).Sub(StartOfWeek(b).In(time.UTC))
	n := int(math.Round(float64(diff) / float64(week)))
	if n < 0 {
		return -n
	}
	return n
}
