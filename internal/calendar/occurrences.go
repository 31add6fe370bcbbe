package calendar

import (
	"slices"
	"time"

	"visitcal/internal/model"
)

// Day is one cell of a month view.
type Day struct {
	Date    model.Date
	InMonth bool

	// Holiday is the holiday name, empty when IsHoliday is false.
	Holiday   string
	IsHoliday bool

	Occurrences []model.Occurrence
}

// OccurrencesOn resolves every event against d and returns the resulting
// occurrences sorted by start time. Events sharing a start time keep their
// input order. An event that cancelled d is skipped, and an event ID seen more
// than once only yields its first definition.
//
// Start / End are built in loc (time.Local if nil). The inputs are only read,
// so concurrent calls over the same snapshot are safe.
func OccurrencesOn(events []model.Event, d model.Date, holidays model.Holidays, loc *time.Location) []model.Occurrence {
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.Occurrence, 0)
	seen := make(map[string]struct{})

	for _, ev := range events {
		if !Occurs(ev, d, holidays) {
			continue
		}
		if ev.IsCancelled(d) {
			continue
		}
		if ev.ID != "" {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
		}
		out = append(out, makeOccurrence(ev, d, loc))
	}

	slices.SortStableFunc(out, func(a, b model.Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// OccurrencesBetween resolves every date in [from, to] and concatenates the
// per-day results in date order. An inverted range yields no occurrences.
func OccurrencesBetween(events []model.Event, from, to model.Date, holidays model.Holidays, loc *time.Location) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, OccurrencesOn(events, d, holidays, loc)...)
	}
	return out
}

// Month builds the 42 cells of the month view containing ref.
func Month(ref model.Date, events []model.Event, holidays model.Holidays, loc *time.Location) []Day {
	grid := MonthGrid(ref)
	days := make([]Day, 0, len(grid))
	for _, d := range grid {
		name, isHoliday := holidays.Name(d)
		days = append(days, Day{
			Date:        d,
			InMonth:     InMonth(d, ref),
			Holiday:     name,
			IsHoliday:   isHoliday,
			Occurrences: OccurrencesOn(events, d, holidays, loc),
		})
	}
	return days
}

// makeOccurrence places ev's time-of-day on d. The end is derived from the
// duration on the absolute timeline.
func makeOccurrence(ev model.Event, d model.Date, loc *time.Location) model.Occurrence {
	start := ev.StartTime.On(d, loc)
	return model.Occurrence{
		Event: ev,
		Date:  d,
		Start: start,
		End:   start.Add(ev.Duration.Std()),
	}
}
