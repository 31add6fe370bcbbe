package model

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidEvent is wrapped by every Event.Validate failure.
var ErrInvalidEvent = errors.New("invalid event")

// Recurrence is the rule deciding on which dates a visit repeats.
type Recurrence string

const (
	RecurrenceNone     Recurrence = "none"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly:
		return true
	default:
		return false
	}
}

// Duration is a visit length in minutes. Only the values in Durations are
// offered by the editing surface.
type Duration int

// Durations lists the allowed visit lengths in ascending order.
var Durations = []Duration{20, 30, 40, 60, 90}

// DefaultDuration is preselected for new visits.
const DefaultDuration Duration = 40

func (d Duration) Valid() bool {
	return slices.Contains(Durations, d)
}

func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Minute
}

// SnapDuration returns the allowed duration closest to minutes. Ties go to the
// shorter value.
func SnapDuration(minutes int) Duration {
	best := Durations[0]
	for _, d := range Durations[1:] {
		if abs(int(d)-minutes) < abs(int(best)-minutes) {
			best = d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Event is a stored visit definition before recurrence resolution.
//
// AnchorDate is the first date the visit can occur on; for recurring visits
// its weekday is the template weekday. StartTime is the wall-clock start used
// for every occurrence. CancelledDates holds single dates removed from a
// series while the rest of the series continues.
type Event struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	AnchorDate Date       `json:"anchor_date"`
	StartTime  TimeOfDay  `json:"start_time"`
	Duration   Duration   `json:"duration"`
	Recurrence Recurrence `json:"recurrence"`
	Memo       string     `json:"memo,omitempty"`

	CancelledDates []Date `json:"cancelled_dates,omitempty"`

	// EndDate, if set, is the last date (inclusive) the series may occur on.
	EndDate *Date `json:"end_date,omitempty"`
}

func (e Event) IsRecurring() bool {
	return e.Recurrence == RecurrenceWeekly || e.Recurrence == RecurrenceBiweekly
}

// AnchorStart is the start instant of the first occurrence.
func (e Event) AnchorStart(loc *time.Location) time.Time {
	return e.StartTime.On(e.AnchorDate, loc)
}

// IsCancelled reports whether d was removed from this event's series.
func (e Event) IsCancelled(d Date) bool {
	return slices.Contains(e.CancelledDates, d)
}

// Cancel adds d to the cancelled set. It reports false if d was already there.
func (e *Event) Cancel(d Date) bool {
	if e.IsCancelled(d) {
		return false
	}
	e.CancelledDates = append(e.CancelledDates, d)
	slices.SortFunc(e.CancelledDates, Date.Compare)
	return true
}

// Restore removes d from the cancelled set. It reports false if d was not there.
func (e *Event) Restore(d Date) bool {
	i := slices.Index(e.CancelledDates, d)
	if i < 0 {
		return false
	}
	e.CancelledDates = slices.Delete(e.CancelledDates, i, i+1)
	return true
}

// Validate checks the fields the editing surface is responsible for. The
// occurrence engine itself never calls it.
func (e Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: id is blank", ErrInvalidEvent)
	case e.Title == "":
		return fmt.Errorf("%w: title is blank", ErrInvalidEvent)
	case e.AnchorDate.IsZero():
		return fmt.Errorf("%w: anchor date is blank", ErrInvalidEvent)
	case !e.StartTime.Valid():
		return fmt.Errorf("%w: start time %s out of range", ErrInvalidEvent, e.StartTime)
	case !e.Duration.Valid():
		return fmt.Errorf("%w: duration %d is not one of %v", ErrInvalidEvent, e.Duration, Durations)
	case !e.Recurrence.Valid():
		return fmt.Errorf("%w: unknown recurrence %q", ErrInvalidEvent, e.Recurrence)
	case e.EndDate != nil && e.EndDate.Before(e.AnchorDate):
		return fmt.Errorf("%w: end date %s before anchor date %s", ErrInvalidEvent, e.EndDate, e.AnchorDate)
	}
	return nil
}

// Occurrence is a single concrete instance of an Event on one date. It is
// computed on demand and never stored.
type Occurrence struct {
	Event Event
	Date  Date

	// Start / End are in the caller's local wall-clock zone.
	Start time.Time
	End   time.Time
}

// InstanceKey uniquely identifies this occurrence among all occurrences.
func (o Occurrence) InstanceKey() string {
	return o.Event.ID + "/" + o.Date.String()
}

// Holidays maps "YYYY-MM-DD" to a holiday display name. The presence of a key
// marks a holiday. A nil map is a valid, empty lookup.
type Holidays map[string]string

// Name returns the holiday name for d, if d is a holiday.
func (h Holidays) Name(d Date) (string, bool) {
	name, ok := h[d.String()]
	return name, ok
}

func (h Holidays) IsHoliday(d Date) bool {
	_, ok := h[d.String()]
	return ok
}
