package therapy

import "fmt"

const (
	// ProlongedTherapyDays is the calendar day after which an Active course is flagged.
	ProlongedTherapyDays = 14
	// NearingStopDays is how close to its plan a course must be to count as nearing stop.
	NearingStopDays = 2
)

// CalendarDay is the wall-clock day of therapy: Day 1 on the start date,
// incrementing at each midnight regardless of what was logged.
func CalendarDay(start, today Date) int {
	d := today.DaysSince(start)
	if d < 0 {
		d = 0
	}
	return d + 1
}

func (e *Episode) CalendarDay(today Date) int { return CalendarDay(e.StartDate, today) }

// Prolonged reports an Active course past ProlongedTherapyDays.
func (e *Episode) Prolonged(today Date) bool {
	return e.IsActive() && e.CalendarDay(today) > ProlongedTherapyDays
}

// NearingStop reports an Active course within NearingStopDays of its plan.
func (e *Episode) NearingStop(today Date) bool {
	return e.IsActive() && e.PlannedDays > 0 && e.PlannedDays-e.CalendarDay(today) <= NearingStopDays
}

// DoseDuration measures therapy by doses actually given rather than elapsed time.
type DoseDuration struct {
	Given          int
	FrequencyHours int
}

func NewDoseDuration(frequencyHours, given int) DoseDuration {
	return DoseDuration{Given: given, FrequencyHours: frequencyHours}
}

// DosesPerDay is zero when the frequency is unknown.
func (d DoseDuration) DosesPerDay() int {
	if d.FrequencyHours <= 0 {
		return 0
	}
	return SlotsPerDay(d.FrequencyHours)
}

func (d DoseDuration) String() string {
	if d.Given == 0 {
		return "0 doses"
	}
	perDay := d.DosesPerDay()
	if perDay == 0 {
		return fmt.Sprintf("%d doses", d.Given)
	}
	if perDay <= 1 {
		return fmt.Sprintf("Day %d", d.Given)
	}
	full, extra := d.Given/perDay, d.Given%perDay
	switch {
	case extra == 0:
		return fmt.Sprintf("Day %d", full)
	case full == 0:
		return fmt.Sprintf("%d doses", extra)
	}
	return fmt.Sprintf("Day %d + %d", full, extra)
}

// Label is String, except an Active course with nothing given yet reads "Day 1".
func (d DoseDuration) Label(active bool) string {
	if d.Given == 0 && active {
		return "Day 1"
	}
	return d.String()
}
