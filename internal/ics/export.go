package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"visitcal/internal/calendar"
	"visitcal/internal/model"
)

const (
	DefaultProductID = "-//visitcal//visit schedule//JA"

	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"
)

// ExportOptions controls how visit definitions are written out.
type ExportOptions struct {
	// Location is the wall-clock zone of the visits. If nil, time.Local is used
	// and times are written in UTC because "Local" is not a valid TZID.
	Location *time.Location

	// HolidaysFrom / HolidaysTo bound the window in which holiday suppression
	// is written as EXDATE. Outside it, holidays are not known to the export.
	HolidaysFrom model.Date
	HolidaysTo   model.Date

	ProductID string
}

// Export renders events as a VCALENDAR. Each definition becomes one VEVENT:
// recurring visits carry an RRULE and list their cancelled dates, plus the
// holidays in the configured window that would otherwise hold a visit, as
// EXDATE.
func Export(events []model.Event, holidays model.Holidays, opts ExportOptions) string {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)

	stamp := time.Now()
	for _, ev := range events {
		addEvent(cal, ev, holidays, opts, stamp)
	}
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, ev model.Event, holidays model.Holidays, opts ExportOptions, stamp time.Time) {
	loc := opts.Location
	start := ev.AnchorStart(loc)
	end := start.Add(ev.Duration.Std())

	ve := cal.AddEvent(ev.ID)
	ve.SetDtStampTime(stamp)
	setTime(ve, ical.ComponentPropertyDtStart, start, loc)
	setTime(ve, ical.ComponentPropertyDtEnd, end, loc)
	ve.SetSummary(ev.Title)
	if ev.Memo != "" {
		ve.SetDescription(ev.Memo)
	}

	if !ev.IsRecurring() {
		return
	}

	ve.AddRrule(recurrenceRule(ev, start.Location()))

	for _, d := range exceptionDates(ev, holidays, opts.HolidaysFrom, opts.HolidaysTo) {
		addTime(ve, ical.ComponentPropertyExdate, ev.StartTime.On(d, loc), loc)
	}
}

// recurrenceRule builds the RRULE value (without DTSTART) for a weekly or
// biweekly visit. Weeks start on Sunday, matching the week buckets used for
// biweekly parity.
func recurrenceRule(ev model.Event, loc *time.Location) string {
	opt := rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: 1,
		Wkst:     rrule.SU,
	}
	if ev.Recurrence == model.RecurrenceBiweekly {
		opt.Interval = 2
	}
	if ev.EndDate != nil {
		opt.Until = ev.StartTime.On(*ev.EndDate, loc)
	}
	return opt.RRuleString()
}

// exceptionDates lists the cancelled dates of ev plus the holidays in
// [from, to] that suppress one of its occurrences.
func exceptionDates(ev model.Event, holidays model.Holidays, from, to model.Date) []model.Date {
	out := append([]model.Date(nil), ev.CancelledDates...)
	if from.IsZero() || to.IsZero() {
		return out
	}
	if from.Before(ev.AnchorDate) {
		from = ev.AnchorDate
	}
	for d := from; !d.After(to); d = d.AddDays(1) {
		if !holidays.IsHoliday(d) || ev.IsCancelled(d) {
			continue
		}
		if calendar.Occurs(ev, d, nil) {
			out = append(out, d)
		}
	}
	return out
}

func setTime(ve *ical.VEvent, prop ical.ComponentProperty, t time.Time, loc *time.Location) {
	value, params := formatTime(t, loc)
	ve.SetProperty(prop, value, params...)
}

func addTime(ve *ical.VEvent, prop ical.ComponentProperty, t time.Time, loc *time.Location) {
	value, params := formatTime(t, loc)
	ve.AddProperty(prop, value, params...)
}

func formatTime(t time.Time, loc *time.Location) (string, []ical.PropertyParameter) {
	if loc == nil || loc == time.Local || loc == time.UTC || loc.String() == "Local" {
		return t.UTC().Format(utcLayout), nil
	}
	return t.In(loc).Format(localLayout), []ical.PropertyParameter{ical.WithTZID(loc.String())}
}
