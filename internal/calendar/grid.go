package calendar

import "visitcal/internal/model"

const (
	// GridWeeks is the number of rows in a month view.
	GridWeeks = 6
	// GridCells is the number of dates in a month view.
	GridCells = GridWeeks * 7
)

// MonthGrid returns the 42 dates of the month view containing ref.
//
// The grid starts on the Sunday on or before the first of the month and runs
// for six full weeks, so it always ends on a Saturday and fully covers the
// month regardless of the month's length or starting weekday.
func MonthGrid(ref model.Date) []model.Date {
	first := ref.FirstOfMonth()
	start := first.AddDays(-int(first.Weekday()))

	days := make([]model.Date, GridCells)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// InMonth reports whether d falls in the same month as ref.
func InMonth(d, ref model.Date) bool {
	return d.Year == ref.Year && d.Month == ref.Month
}
