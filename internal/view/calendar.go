package view

import (
	"time"

	"todo-calendar/internal/model"
)

// Weekdays are the column headings, Sunday first.
var Weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Day is one cell of the month grid.
type Day struct {
	Date     string
	Number   int
	Today    bool
	Selected bool
}

// Calendar is the month grid of the displayed month.
type Calendar struct {
	Title string
	// Offset is the weekday of the 1st, Sunday = 0; that many blank cells lead the grid.
	Offset int
	Blanks []struct{}
	Days   []Day
	Prev   string
	Next   string
}

// Calendar lays out the displayed month, marking today and the selected date.
func (c *Controller) Calendar(today time.Time) Calendar {
	month := c.State.Month
	todayStr := today.Format(model.DateLayout)
	n := DaysIn(month.Year(), month.Month())
	offset := int(month.Weekday())

	cal := Calendar{
		Title:  month.Format("January 2006"),
		Offset: offset,
		Blanks: make([]struct{}, offset),
		Days:   make([]Day, 0, n),
		Prev:   month.AddDate(0, -1, 0).Format("2006-01"),
		Next:   month.AddDate(0, 1, 0).Format("2006-01"),
	}
	for d := 1; d <= n; d++ {
		date := time.Date(month.Year(), month.Month(), d, 0, 0, 0, 0, month.Location()).Format(model.DateLayout)
		cal.Days = append(cal.Days, Day{
			Date:     date,
			Number:   d,
			Today:    date == todayStr,
			Selected: date == c.State.SelectedDate,
		})
	}
	return cal
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
