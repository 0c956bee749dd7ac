package wage

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// CLOCK ARITHMETIC - Minute offsets from midnight of the work date
// =============================================================================

const (
	MinutesPerDay = 24 * 60

	// Night band is 22:00 to 05:00 the following morning.
	NightBandStart = 22 * 60
	NightBandEnd   = 5 * 60
)

// TimeToMinutes converts an "HH:mm" clock string to minutes since midnight.
// Hours may be written with one or two digits; minutes always take two.
func TimeToMinutes(clock string) (int, error) {
	h, m, ok := strings.Cut(clock, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return 0, &TimeFormatError{Value: clock}
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 || !isDigits(h) {
		return 0, &TimeFormatError{Value: clock}
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 || !isDigits(m) {
		return 0, &TimeFormatError{Value: clock}
	}
	return hours*60 + minutes, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MinutesToClock formats an offset as "HH:mm". Offsets past midnight are not
// wrapped, so the end of an overnight shift renders as e.g. "30:00".
func MinutesToClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinutesToDisplay formats a duration for people: "45m", "8h", "10h 30m".
func MinutesToDisplay(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// =============================================================================
// SHIFT - A parsed start/end pair, extended across midnight when needed
// =============================================================================

// Shift holds minute offsets from midnight of the work date.
// End is always >= Start; an end clock earlier than the start clock is
// taken to be on the following day.
type Shift struct {
	Start int
	End   int
}

// ParseShift parses the clock strings of a record into a Shift.
func ParseShift(startTime, endTime string) (Shift, error) {
	start, err := TimeToMinutes(startTime)
	if err != nil {
		return Shift{}, &TimeFormatError{Field: "start_time", Value: startTime}
	}
	end, err := TimeToMinutes(endTime)
	if err != nil {
		return Shift{}, &TimeFormatError{Field: "end_time", Value: endTime}
	}
	if end < start {
		end += MinutesPerDay
	}
	return Shift{Start: start, End: end}, nil
}

// Crosses reports whether the shift runs past midnight.
func (s Shift) Crosses() bool { return s.End > MinutesPerDay }

// Span is the restraint time: clock-in to clock-out, breaks included.
func (s Shift) Span() int { return s.End - s.Start }

// Worked is the span less breaks, never negative.
func (s Shift) Worked(breakMinutes int) int {
	return max(0, s.Span()-breakMinutes)
}

// Night returns the minutes of the shift inside the night band, less a share
// of the break proportional to the night share of the span.
//
// The proration assumes breaks are spread evenly over the shift. It does not
// know when the break was actually taken, so it is an approximation.
// Early-morning minutes before 05:00 on the work date itself are not counted;
// only the post-midnight portion of a shift that crosses midnight is.
func (s Shift) Night(breakMinutes int) int {
	night := 0

	if s.End > NightBandStart {
		from := max(s.Start, NightBandStart)
		to := min(s.End, MinutesPerDay)
		night += max(0, to-from)
	}

	if s.Crosses() {
		night += max(0, min(s.End-MinutesPerDay, NightBandEnd))
	}

	if span := s.Span(); span > 0 {
		night -= breakMinutes * night / span
	}

	return max(0, night)
}

// =============================================================================
// STRING FORMS - Operate directly on "HH:mm" values
// =============================================================================

// WorkedMinutes returns the worked minutes between two clock times.
func WorkedMinutes(startTime, endTime string, breakMinutes int) (int, error) {
	s, err := ParseShift(startTime, endTime)
	if err != nil {
		return 0, err
	}
	return s.Worked(breakMinutes), nil
}

// RestraintMinutes returns the total time bound to duty, breaks included.
func RestraintMinutes(startTime, endTime string) (int, error) {
	s, err := ParseShift(startTime, endTime)
	if err != nil {
		return 0, err
	}
	return s.Span(), nil
}

// NightMinutes returns the worked minutes falling in the night band.
func NightMinutes(startTime, endTime string, breakMinutes int) (int, error) {
	s, err := ParseShift(startTime, endTime)
	if err != nil {
		return 0, err
	}
	return s.Night(breakMinutes), nil
}

// =============================================================================
// OVERTIME ROUNDING
// =============================================================================

// RoundOvertimeMinutes rounds minutes to a multiple of unit.
// A unit <= 0 disables rounding. An unknown method leaves minutes unchanged.
// RoundHalf rounds halves up, so 7 minutes at a 15 minute unit is 0 and
// 8 minutes is 15.
func RoundOvertimeMinutes(minutes, unit int, method RoundingMethod) int {
	if unit <= 0 {
		return minutes
	}
	switch method {
	case RoundFloor:
		return floorDiv(minutes, unit) * unit
	case RoundCeil:
		return -floorDiv(-minutes, unit) * unit
	case RoundHalf:
		return floorDiv(2*minutes+unit, 2*unit) * unit
	default:
		return minutes
	}
}

// floorDiv divides rounding toward negative infinity. b must be positive.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
