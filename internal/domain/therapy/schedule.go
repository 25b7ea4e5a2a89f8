package therapy

// DisplayWindowDays bounds how many dates are shown and loggable per episode.
const DisplayWindowDays = 30

// SlotsPerDay converts a dosing interval into scheduled slots per date.
// A missing or non-positive interval means once daily.
func SlotsPerDay(frequencyHours int) int {
	if frequencyHours <= 0 {
		return 1
	}
	if n := 24 / frequencyHours; n > 1 {
		return n
	}
	return 1
}

// DayNumber labels target relative to start, where start is Day 1.
func DayNumber(start, target Date) int {
	n := target.DaysSince(start) + 1
	if n < 1 {
		return 1
	}
	return n
}

// LastDate is the final date of the course: its terminal date, or today
// while it is still Active. It is never earlier than the start date.
func (e *Episode) LastDate(today Date) Date {
	last := today
	if at, ok := EndedAt(e.Status); ok && !at.IsZero() {
		last = DateOf(at)
	}
	if last.Before(e.StartDate) {
		return e.StartDate
	}
	return last
}

// Window returns the dates that can be displayed and logged, oldest first,
// clipped to the most recent DisplayWindowDays.
func (e *Episode) Window(today Date) []Date {
	last := e.LastDate(today)
	first := e.StartDate
	if last.DaysSince(first) >= DisplayWindowDays {
		first = last.AddDays(-(DisplayWindowDays - 1))
	}
	dates := make([]Date, 0, last.DaysSince(first)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// InWindow reports whether date falls inside Window(today).
func (e *Episode) InWindow(today, date Date) bool {
	w := e.Window(today)
	return len(w) > 0 && !date.Before(w[0]) && !date.After(w[len(w)-1])
}
