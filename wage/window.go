package wage

import "time"

// =============================================================================
// CALENDAR DATES - Work dates carry no time of day
// =============================================================================

const DateLayout = "2006-01-02"

// Date constructs a calendar date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the time-of-day and location from t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// =============================================================================
// EFFECTIVE WINDOW - The dates during which a rule version is in force
// =============================================================================

// EffectiveWindow is [From, To] with both ends inclusive.
// A nil To means the window is open-ended.
type EffectiveWindow struct {
	From time.Time
	To   *time.Time
}

// Contains returns true if the calendar day of t lies within the window.
func (w EffectiveWindow) Contains(t time.Time) bool {
	d := DateOf(t)
	if d.Before(DateOf(w.From)) {
		return false
	}
	if w.To != nil && d.After(DateOf(*w.To)) {
		return false
	}
	return true
}

// IsOpen reports whether the window has no end date.
func (w EffectiveWindow) IsOpen() bool { return w.To == nil }

// String returns a string representation of the window.
func (w EffectiveWindow) String() string {
	end := "open"
	if w.To != nil {
		end = w.To.Format(DateLayout)
	}
	return "[" + w.From.Format(DateLayout) + ", " + end + "]"
}
