package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "visitcal/internal/log"
	"visitcal/internal/model"
)

var ErrUnsupportedRule = errors.New("unsupported recurrence rule")

// ImportResult is the outcome of parsing one iCalendar payload.
type ImportResult struct {
	Events  []model.Event
	Skipped int // VEVENTs that could not be mapped to a visit
}

// Parse reads a VCALENDAR and maps each VEVENT onto a visit definition in loc.
//
//   - RRULE must be FREQ=WEEKLY with INTERVAL 1 or 2 and BYDAY, if any, naming
//     the DTSTART weekday; other rules skip the event.
//   - UNTIL becomes the inclusive end date.
//   - EXDATE values become cancelled dates.
//   - DTEND - DTSTART is snapped to the nearest supported duration.
//   - A missing UID gets a fresh one.
//
// Holiday exclusions written by Export come back as ordinary cancellations.
func Parse(body []byte, loc *time.Location) (ImportResult, error) {
	if len(body) == 0 {
		return ImportResult{}, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return ImportResult{}, err
	}

	var res ImportResult
	res.Events = make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "uid", ve.Id(), "err", perr.Error())
			res.Skipped++
			continue
		}
		res.Events = append(res.Events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(res.Events), "skipped", res.Skipped)
	return res, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	out.ID = strings.TrimSpace(ve.Id())
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Memo = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	start = start.In(loc)
	out.AnchorDate = model.DateOf(start)
	out.StartTime = model.TimeOfDayOf(start)

	out.Duration = model.DefaultDuration
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		out.Duration = model.SnapDuration(int(end.Sub(start) / time.Minute))
	}

	out.Recurrence = model.RecurrenceNone
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		if err := applyRule(&out, p.Value, loc); err != nil {
			return out, err
		}
	}

	if out.IsRecurring() {
		for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
			for _, d := range exceptionValues(p, loc) {
				out.Cancel(d)
			}
		}
	}

	if out.Title == "" {
		out.Title = "(untitled)"
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func applyRule(ev *model.Event, value string, loc *time.Location) error {
	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		return fmt.Errorf("RRULE: %w", err)
	}
	if opt.Freq != rrule.WEEKLY || opt.Count != 0 || len(opt.Byweekday) > 1 || narrowed(opt) {
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, value)
	}
	if len(opt.Byweekday) == 1 {
		wd := opt.Byweekday[0]
		if wd.N() != 0 || wd.Day() != weekdayIndex(ev.AnchorDate.Weekday()) {
			return fmt.Errorf("%w: %s", ErrUnsupportedRule, value)
		}
	}
	switch opt.Interval {
	case 0, 1:
		ev.Recurrence = model.RecurrenceWeekly
	case 2:
		ev.Recurrence = model.RecurrenceBiweekly
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, value)
	}
	if !opt.Until.IsZero() {
		end := model.DateOf(opt.Until.In(loc))
		ev.EndDate = &end
	}
	return nil
}

// narrowed reports whether the rule filters or expands the weekly series
// with BY* parts a visit cannot carry.
func narrowed(opt *rrule.ROption) bool {
	for _, part := range [][]int{
		opt.Bysetpos, opt.Bymonth, opt.Bymonthday, opt.Byyearday,
		opt.Byweekno, opt.Byhour, opt.Byminute, opt.Bysecond, opt.Byeaster,
	} {
		if len(part) > 0 {
			return true
		}
	}
	return false
}

// weekdayIndex maps time.Weekday onto rrule-go's Monday-first numbering.
func weekdayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// exceptionValues decodes one EXDATE property, which may hold a
// comma-separated list and carry its own TZID.
func exceptionValues(p *ical.IANAProperty, loc *time.Location) []model.Date {
	valueLoc := loc
	if tzs, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			valueLoc = l
		}
	}

	var out []model.Date
	for _, part := range strings.Split(p.Value, ",") {
		t, err := parseICSTime(part, valueLoc)
		if err != nil {
			appLog.Debug("ics: skipping EXDATE value", "value", part)
			continue
		}
		out = append(out, model.DateOf(t.In(loc)))
	}
	return out
}

// parseICSTime parses DATE, local DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcLayout, v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation(localLayout, v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
