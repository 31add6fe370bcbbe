package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"visitcal/internal/model"
)

func date(y int, m time.Month, d int) model.Date {
	return model.NewDate(y, m, d)
}

func visit(kind model.Recurrence, anchor model.Date) model.Event {
	return model.Event{
		ID:         "v-" + string(kind),
		Title:      "visit",
		AnchorDate: anchor,
		StartTime:  model.TimeOfDay{Hour: 9},
		Duration:   40,
		Recurrence: kind,
	}
}

var allKinds = []model.Recurrence{
	model.RecurrenceNone,
	model.RecurrenceWeekly,
	model.RecurrenceBiweekly,
}

func TestOccurs_NeverBeforeAnchor(t *testing.T) {
	anchor := date(2024, time.January, 7)
	for _, kind := range allKinds {
		ev := visit(kind, anchor)
		for d := anchor.AddDays(-60); d.Before(anchor); d = d.AddDays(1) {
			assert.False(t, Occurs(ev, d, nil), "%s on %s", kind, d)
		}
	}
}

func TestOccurs_NoneMatchesOnlyAnchor(t *testing.T) {
	anchor := date(2024, time.January, 7)
	ev := visit(model.RecurrenceNone, anchor)

	var matched []model.Date
	for d := anchor.AddDays(-30); d.Before(anchor.AddDays(400)); d = d.AddDays(1) {
		if Occurs(ev, d, nil) {
			matched = append(matched, d)
		}
	}
	assert.Equal(t, []model.Date{anchor}, matched)
}

func TestOccurs_WeeklyMatchesWeekdayExceptHolidays(t *testing.T) {
	anchor := date(2024, time.January, 7)
	ev := visit(model.RecurrenceWeekly, anchor)
	holidays := model.Holidays{
		"2024-01-14": "成人の日",
		"2024-02-11": "建国記念の日",
	}

	for d := anchor; d.Before(anchor.AddDays(120)); d = d.AddDays(1) {
		want := d.Weekday() == time.Sunday && !holidays.IsHoliday(d)
		assert.Equal(t, want, Occurs(ev, d, holidays), "%s", d)
	}
}

func TestOccurs_WeeklyExample(t *testing.T) {
	ev := visit(model.RecurrenceWeekly, date(2024, time.January, 7))

	assert.True(t, Occurs(ev, date(2024, time.January, 14), nil))
	assert.False(t, Occurs(ev, date(2024, time.January, 13), nil))
}

func TestOccurs_BiweeklyExample(t *testing.T) {
	ev := visit(model.RecurrenceBiweekly, date(2024, time.January, 7))

	assert.True(t, Occurs(ev, date(2024, time.January, 7), nil), "anchor itself")
	assert.False(t, Occurs(ev, date(2024, time.January, 14), nil), "one week later")
	assert.True(t, Occurs(ev, date(2024, time.January, 21), nil), "two weeks later")
}

func TestOccurs_BiweeklyAlternates(t *testing.T) {
	// Anchored on a Wednesday so week buckets and the anchor weekday differ.
	anchor := date(2023, time.November, 29)
	ev := visit(model.RecurrenceBiweekly, anchor)

	want := true
	for d := anchor; d.Before(anchor.AddDays(7*60)); d = d.AddDays(7) {
		assert.Equal(t, want, Occurs(ev, d, nil), "%s", d)
		want = !want
	}
	// Other weekdays never match.
	for d := anchor.AddDays(1); d.Before(anchor.AddDays(6)); d = d.AddDays(1) {
		assert.False(t, Occurs(ev, d, nil), "%s", d)
	}
}

func TestOccurs_BiweeklyAcrossYearBoundary(t *testing.T) {
	ev := visit(model.RecurrenceBiweekly, date(2023, time.December, 24))

	assert.False(t, Occurs(ev, date(2023, time.December, 31), nil))
	assert.True(t, Occurs(ev, date(2024, time.January, 7), nil))
	assert.False(t, Occurs(ev, date(2024, time.January, 14), nil))
	assert.True(t, Occurs(ev, date(2024, time.January, 21), nil))
}

func TestOccurs_BiweeklyAcrossLeapDay(t *testing.T) {
	ev := visit(model.RecurrenceBiweekly, date(2024, time.February, 15))

	assert.True(t, Occurs(ev, date(2024, time.February, 29), nil))
	assert.False(t, Occurs(ev, date(2024, time.March, 7), nil))
	assert.True(t, Occurs(ev, date(2024, time.March, 14), nil))
}

func TestOccurs_HolidaySuppressesRecurringOnly(t *testing.T) {
	anchor := date(2024, time.January, 7)
	holidays := model.Holidays{
		"2024-01-07": "hypothetical",
		"2024-01-14": "成人の日",
	}

	weekly := visit(model.RecurrenceWeekly, anchor)
	assert.False(t, Occurs(weekly, date(2024, time.January, 14), holidays))
	assert.True(t, Occurs(weekly, date(2024, time.January, 21), holidays))

	biweekly := visit(model.RecurrenceBiweekly, anchor)
	assert.False(t, Occurs(biweekly, anchor, holidays))

	once := visit(model.RecurrenceNone, anchor)
	assert.True(t, Occurs(once, anchor, holidays))
}

func TestOccurs_EmptyHolidayName(t *testing.T) {
	// Presence of the key is what marks a holiday.
	ev := visit(model.RecurrenceWeekly, date(2024, time.January, 7))
	assert.False(t, Occurs(ev, date(2024, time.January, 14), model.Holidays{"2024-01-14": ""}))
}

func TestOccurs_EndDate(t *testing.T) {
	end := date(2024, time.January, 21)
	ev := visit(model.RecurrenceWeekly, date(2024, time.January, 7))
	ev.EndDate = &end

	assert.True(t, Occurs(ev, end, nil))
	assert.False(t, Occurs(ev, date(2024, time.January, 28), nil))
}

func TestOccurs_UnknownRecurrence(t *testing.T) {
	anchor := date(2024, time.January, 7)
	ev := visit("monthly", anchor)
	assert.False(t, Occurs(ev, anchor, nil))
}

func TestStartOfWeek(t *testing.T) {
	assert.Equal(t, date(2024, time.January, 7), StartOfWeek(date(2024, time.January, 7)))
	assert.Equal(t, date(2024, time.January, 7), StartOfWeek(date(2024, time.January, 13)))
	assert.Equal(t, date(2023, time.December, 31), StartOfWeek(date(2024, time.January, 1)))
}

func TestWeeksBetween(t *testing.T) {
	tests := []struct {
		a, b model.Date
		want int
	}{
		{date(2024, time.January, 7), date(2024, time.January, 7), 0},
		{date(2024, time.January, 7), date(2024, time.January, 13), 0},
		{date(2024, time.January, 13), date(2024, time.January, 14), 1},
		{date(2024, time.January, 21), date(2024, time.January, 7), 2},
		{date(2023, time.December, 30), date(2024, time.January, 2), 1},
		{date(2024, time.March, 3), date(2024, time.March, 31), 4},
		{date(2024, time.October, 27), date(2024, time.November, 10), 2},
		{date(2024, time.January, 7), date(2025, time.January, 5), 52},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeeksBetween(tt.a, tt.b), "%s..%s", tt.a, tt.b)
	}
}

func TestWeeksBetween_Symmetric(t *testing.T) {
	base := date(2023, time.October, 1)
	for i := 0; i < 200; i += 3 {
		for j := 0; j < 200; j += 5 {
			a, b := base.AddDays(i), base.AddDays(j)
			assert.Equal(t, WeeksBetween(a, b), WeeksBetween(b, a), "%s %s", a, b)
		}
	}
}
