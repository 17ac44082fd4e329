package advisor

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the textual form of every target and resolved date.
const DateLayout = "01/02/2006"

// parseLayout also accepts single digit months and days.
const parseLayout = "1/2/2006"

// ParseDate parses MM/DD/YYYY text into a UTC calendar date.
func ParseDate(text string) (time.Time, error) {
	t, err := time.Parse(parseLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, text)
	}
	return t, nil
}

// FormatDate renders a date as MM/DD/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the calendar date of now, as a UTC midnight.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LeadDays counts whole calendar days from today to date. Both must be
// calendar dates as returned by Today and ParseDate.
func LeadDays(today, date time.Time) int {
	return int(date.Sub(today).Hours() / 24)
}
