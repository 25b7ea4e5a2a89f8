package therapy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsPerDay(t *testing.T) {
	tests := []struct {
		hours int
		want  int
	}{
		{-6, 1},
		{0, 1},
		{1, 24},
		{5, 4},
		{6, 4},
		{8, 3},
		{12, 2},
		{24, 1},
		{36, 1},
		{72, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SlotsPerDay(tt.hours), "frequency %dh", tt.hours)
	}
}

func TestSlotsPerDay_MatchesFloorFormula(t *testing.T) {
	for h := 1; h <= 96; h++ {
		want := 24 / h
		if want < 1 {
			want = 1
		}
		require.Equal(t, want, SlotsPerDay(h), "frequency %dh", h)
	}
}

func TestCalendarDay(t *testing.T) {
	today := NewDate(2024, time.March, 20)

	assert.Equal(t, 1, CalendarDay(today, today))
	assert.Equal(t, 15, CalendarDay(today.AddDays(-14), today))
	assert.Equal(t, 2, CalendarDay(today.AddDays(-1), today))
	// A course scheduled for the future has not started counting yet.
	assert.Equal(t, 1, CalendarDay(today.AddDays(3), today))
}

func TestCalendarDay_CrossesMonthAndYear(t *testing.T) {
	assert.Equal(t, 3, CalendarDay(NewDate(2023, time.December, 31), NewDate(2024, time.January, 2)))
	assert.Equal(t, 30, CalendarDay(NewDate(2024, time.February, 1), NewDate(2024, time.March, 1)))
}

func TestDayNumber(t *testing.T) {
	start := NewDate(2024, time.January, 1)
	assert.Equal(t, 1, DayNumber(start, start))
	assert.Equal(t, 3, DayNumber(start, NewDate(2024, time.January, 3)))
	assert.Equal(t, 1, DayNumber(start, NewDate(2023, time.December, 25)))
}

func TestDoseDuration_String(t *testing.T) {
	tests := []struct {
		name  string
		freq  int
		given int
		want  string
	}{
		{"nothing given", 8, 0, "0 doses"},
		{"nothing given no frequency", 0, 0, "0 doses"},
		{"unknown frequency", 0, 5, "5 doses"},
		{"once daily", 24, 4, "Day 4"},
		{"less than daily", 48, 2, "Day 2"},
		{"q8h partial day", 8, 7, "Day 2 + 1"},
		{"q8h ten doses", 8, 10, "Day 3 + 1"},
		{"q8h whole days", 8, 9, "Day 3"},
		{"q8h under a day", 8, 2, "2 doses"},
		{"q6h", 6, 5, "Day 1 + 1"},
		{"q12h", 12, 4, "Day 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewDoseDuration(tt.freq, tt.given).String())
		})
	}
}

func TestDoseDuration_Label(t *testing.T) {
	assert.Equal(t, "Day 1", NewDoseDuration(8, 0).Label(true))
	assert.Equal(t, "0 doses", NewDoseDuration(8, 0).Label(false))
	assert.Equal(t, "Day 2 + 1", NewDoseDuration(8, 7).Label(true))
}

// Calendar and dose-based durations are independent: missed doses move one
// and not the other.
func TestDurations_DivergeWhenDosesMissed(t *testing.T) {
	start := NewDate(2024, time.January, 1)
	today := NewDate(2024, time.January, 3)
	ep := newTestEpisode(t, start, 6, 0)
	log := NewLog()

	given := []struct {
		date Date
		slot int
		at   string
	}{
		{start, 0, "00:00"},
		{start, 1, "06:00"},
		{start, 2, "12:00"},
		{start, 3, "18:00"},
		{start.AddDays(1), 0, "00:00"},
	}
	for _, g := range given {
		require.NoError(t, log.Record(ep, today, Dose{SlotKey: SlotKey{Date: g.date, Slot: g.slot}, Outcome: Given{Time: g.at}}))
	}
	require.NoError(t, log.Record(ep, today, Dose{
		SlotKey: SlotKey{Date: start.AddDays(1), Slot: 1},
		Outcome: Missed{Reason: "Patient refused"},
	}))

	assert.Equal(t, 3, ep.CalendarDay(today))
	assert.Equal(t, 4, ep.SlotsPerDay())
	assert.Equal(t, "Day 1 + 1", NewDoseDuration(ep.FrequencyHours, log.GivenCount(ep.ID)).String())
}

func TestProlongedAndNearingStop(t *testing.T) {
	today := NewDate(2024, time.June, 15)

	ep := newTestEpisode(t, today.AddDays(-14), 8, 0)
	assert.True(t, ep.Prolonged(today), "day 15 is prolonged")
	assert.False(t, ep.NearingStop(today), "no plan means never nearing stop")

	ep = newTestEpisode(t, today.AddDays(-13), 8, 0)
	assert.False(t, ep.Prolonged(today), "day 14 is not prolonged")

	ep = newTestEpisode(t, today.AddDays(-4), 8, 7)
	assert.True(t, ep.NearingStop(today), "day 5 of 7")

	ep = newTestEpisode(t, today.AddDays(-3), 8, 7)
	assert.False(t, ep.NearingStop(today), "day 4 of 7")

	ep = newTestEpisode(t, today.AddDays(-14), 8, 7)
	require.NoError(t, ep.Stop(time.Now(), ReasonChoice{Code: "Clinical cure"}))
	assert.False(t, ep.Prolonged(today))
	assert.False(t, ep.NearingStop(today))
}

func newTestEpisode(t *testing.T, start Date, freq, planned int) *Episode {
	t.Helper()
	ep, err := NewEpisode(EpisodeInput{
		Drug:           "Meropenem",
		Dose:           "1g",
		Route:          "IV",
		FrequencyHours: freq,
		StartDate:      start,
		PlannedDays:    planned,
		RequestedBy:    "Dr. Santos",
	}, time.Date(start.Year, start.Month, start.Day, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, ep.ID)
	return ep
}
