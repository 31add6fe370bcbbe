package calendar

import (
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitcal/internal/model"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestOccurrencesOn_WeeklyExample(t *testing.T) {
	loc := tokyo(t)
	ev := visit(model.RecurrenceWeekly, date(2024, time.January, 7))

	got := OccurrencesOn([]model.Event{ev}, date(2024, time.January, 14), nil, loc)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, time.January, 14, 9, 0, 0, 0, loc), got[0].Start)
	assert.Equal(t, time.Date(2024, time.January, 14, 9, 40, 0, 0, loc), got[0].End)
	assert.Equal(t, date(2024, time.January, 14), got[0].Date)
	assert.Equal(t, "v-weekly/2024-01-14", got[0].InstanceKey())

	assert.Empty(t, OccurrencesOn([]model.Event{ev}, date(2024, time.January, 13), nil, loc))
}

func TestOccurrencesOn_HolidayExample(t *testing.T) {
	loc := tokyo(t)
	holidays := model.Holidays{"2024-01-14": "成人の日"}
	weekly := visit(model.RecurrenceWeekly, date(2024, time.January, 7))
	once := visit(model.RecurrenceNone, date(2024, time.January, 14))

	got := OccurrencesOn([]model.Event{weekly, once}, date(2024, time.January, 14), holidays, loc)
	require.Len(t, got, 1)
	assert.Equal(t, once.ID, got[0].Event.ID)
}

func TestOccurrencesOn_SortedByStartStable(t *testing.T) {
	loc := tokyo(t)
	d := date(2024, time.May, 1)
	mk := func(id string, h, m int) model.Event {
		return model.Event{
			ID: id, Title: id, AnchorDate: d, Duration: 30,
			StartTime: model.TimeOfDay{Hour: h, Minute: m}, Recurrence: model.RecurrenceNone,
		}
	}
	events := []model.Event{
		mk("late", 15, 0),
		mk("tie-a", 10, 30),
		mk("early", 8, 5),
		mk("tie-b", 10, 30),
	}

	got := OccurrencesOn(events, d, nil, loc)
	ids := make([]string, 0, len(got))
	for _, o := range got {
		ids = append(ids, o.Event.ID)
	}
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, ids)
}

func TestOccurrencesOn_Cancelled(t *testing.T) {
	loc := tokyo(t)
	ev := visit(model.RecurrenceWeekly, date(2024, time.January, 7))
	ev.Cancel(date(2024, time.January, 21))

	assert.Empty(t, OccurrencesOn([]model.Event{ev}, date(2024, time.January, 21), nil, loc))
	assert.Len(t, OccurrencesOn([]model.Event{ev}, date(2024, time.January, 28), nil, loc), 1)
}

func TestOccurrencesOn_DuplicateIDs(t *testing.T) {
	loc := tokyo(t)
	ev := visit(model.RecurrenceWeekly, date(2024, time.January, 7))
	later := ev
	later.StartTime = model.TimeOfDay{Hour: 11}

	got := OccurrencesOn([]model.Event{ev, later}, date(2024, time.January, 14), nil, loc)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Start.Hour())
}

func TestOccurrencesOn_EmptyInput(t *testing.T) {
	got := OccurrencesOn(nil, date(2024, time.January, 14), nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOccurrencesOn_DoesNotMutateInput(t *testing.T) {
	loc := tokyo(t)
	events := []model.Event{
		{ID: "b", Title: "b", AnchorDate: date(2024, time.January, 7), StartTime: model.TimeOfDay{Hour: 12}, Duration: 20, Recurrence: model.RecurrenceWeekly},
		{ID: "a", Title: "a", AnchorDate: date(2024, time.January, 7), StartTime: model.TimeOfDay{Hour: 8}, Duration: 20, Recurrence: model.RecurrenceWeekly},
	}
	holidays := model.Holidays{"2024-01-21": "x"}

	_ = OccurrencesOn(events, date(2024, time.January, 14), holidays, loc)
	assert.Equal(t, "b", events[0].ID)
	assert.Len(t, holidays, 1)
}

func TestOccurrencesOn_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// DST starts 2024-03-10 in New York.
	ev := visit(model.RecurrenceBiweekly, date(2024, time.March, 3))
	got := OccurrencesOn([]model.Event{ev}, date(2024, time.March, 17), nil, loc)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Start.Hour())
	assert.Equal(t, 40*time.Minute, got[0].End.Sub(got[0].Start))

	assert.Empty(t, OccurrencesOn([]model.Event{ev}, date(2024, time.March, 10), nil, loc))
}

func TestOccurrencesOn_Concurrent(t *testing.T) {
	loc := tokyo(t)
	events := []model.Event{
		visit(model.RecurrenceWeekly, date(2024, time.January, 7)),
		visit(model.RecurrenceBiweekly, date(2024, time.January, 7)),
	}
	holidays := model.Holidays{"2024-02-11": "建国記念の日"}
	want := OccurrencesOn(events, date(2024, time.January, 21), holidays, loc)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, OccurrencesOn(events, date(2024, time.January, 21), holidays, loc))
		}()
	}
	wg.Wait()
}

func TestOccurrencesBetween(t *testing.T) {
	loc := tokyo(t)
	events := []model.Event{
		visit(model.RecurrenceWeekly, date(2024, time.January, 7)),
		visit(model.RecurrenceBiweekly, date(2024, time.January, 10)),
	}

	got := OccurrencesBetween(events, date(2024, time.January, 1), date(2024, time.January, 31), nil, loc)
	var days []string
	for _, o := range got {
		days = append(days, o.Date.String())
	}
	assert.Equal(t, []string{
		"2024-01-07",
		"2024-01-10",
		"2024-01-14",
		"2024-01-21",
		"2024-01-24",
		"2024-01-28",
	}, days)

	assert.Empty(t, OccurrencesBetween(events, date(2024, time.January, 31), date(2024, time.January, 1), nil, loc))
}

func TestMonth(t *testing.T) {
	loc := tokyo(t)
	holidays := model.Holidays{"2024-01-08": "成人の日"}
	events := []model.Event{visit(model.RecurrenceWeekly, date(2024, time.January, 1))}

	days := Month(date(2024, time.January, 20), events, holidays, loc)
	require.Len(t, days, GridCells)

	assert.Equal(t, date(2023, time.December, 31), days[0].Date)
	assert.False(t, days[0].InMonth)
	assert.True(t, days[1].InMonth)

	// 2024-01-08 is a Monday and a holiday: the weekly Monday visit is skipped.
	jan8 := days[8]
	assert.Equal(t, date(2024, time.January, 8), jan8.Date)
	assert.True(t, jan8.IsHoliday)
	assert.Equal(t, "成人の日", jan8.Holiday)
	assert.Empty(t, jan8.Occurrences)

	assert.Len(t, days[1].Occurrences, 1)
	assert.Len(t, days[15].Occurrences, 1)
	assert.Empty(t, days[2].Occurrences)
}
