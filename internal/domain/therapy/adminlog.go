package therapy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotKey identifies one dose opportunity. A Log holds at most one Dose per key.
type SlotKey struct {
	Episode uuid.UUID
	Date    Date
	Slot    int
}

// Outcome is what happened at a slot: Given or Missed.
type Outcome interface {
	isOutcome()
}

// Given records an administered dose at a time of day ("15:04").
type Given struct {
	Time string
}

// Missed records a skipped dose and why.
type Missed struct {
	Reason string
}

func (Given) isOutcome()  {}
func (Missed) isOutcome() {}

type Dose struct {
	SlotKey
	Outcome    Outcome
	RecordedAt time.Time
	RecordedBy string
}

func (d Dose) IsGiven() bool {
	_, ok := d.Outcome.(Given)
	return ok
}

func (d Dose) IsMissed() bool {
	_, ok := d.Outcome.(Missed)
	return ok
}

// NewGiven validates a time of day and returns a Given outcome.
func NewGiven(timeOfDay string) (Outcome, error) {
	timeOfDay = strings.TrimSpace(timeOfDay)
	if timeOfDay == "" {
		return nil, invalid("time", "administration time is required")
	}
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return nil, invalid("time", "administration time must be HH:MM")
	}
	return Given{Time: t.Format("15:04")}, nil
}

// NewMissed validates a missed-dose reason and returns a Missed outcome.
func NewMissed(reason ReasonChoice) (Outcome, error) {
	text, err := reason.Resolve("missed_reason", MissedDoseReasons)
	if err != nil {
		return nil, err
	}
	return Missed{Reason: text}, nil
}

// Log is the flat administration index of one patient record, keyed by
// (episode, date, slot).
type Log struct {
	entries map[SlotKey]Dose
}

func NewLog() *Log {
	return &Log{entries: make(map[SlotKey]Dose)}
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Put stores d, replacing whatever occupied its slot.
func (l *Log) Put(d Dose) {
	if l.entries == nil {
		l.entries = make(map[SlotKey]Dose)
	}
	l.entries[d.SlotKey] = d
}

func (l *Log) Get(k SlotKey) (Dose, bool) {
	if l == nil {
		return Dose{}, false
	}
	d, ok := l.entries[k]
	return d, ok
}

func (l *Log) Delete(k SlotKey) bool {
	if l == nil {
		return false
	}
	if _, ok := l.entries[k]; !ok {
		return false
	}
	delete(l.entries, k)
	return true
}

// Day returns the doses of one episode on one date: Given by time, then Missed.
func (l *Log) Day(episode uuid.UUID, date Date) []Dose {
	var out []Dose
	if l == nil {
		return out
	}
	for k, d := range l.entries {
		if k.Episode == episode && k.Date == date {
			out = append(out, d)
		}
	}
	sortDoses(out)
	return out
}

// Episode returns every dose of one episode ordered by date.
func (l *Log) Episode(episode uuid.UUID) []Dose {
	var out []Dose
	if l == nil {
		return out
	}
	for k, d := range l.entries {
		if k.Episode == episode {
			out = append(out, d)
		}
	}
	sortDoses(out)
	return out
}

// GivenCount counts administered doses for one episode.
func (l *Log) GivenCount(episode uuid.UUID) int {
	if l == nil {
		return 0
	}
	n := 0
	for k, d := range l.entries {
		if k.Episode == episode && d.IsGiven() {
			n++
		}
	}
	return n
}

// HasMissed reports whether any episode has a Missed dose.
func (l *Log) HasMissed() bool {
	if l == nil {
		return false
	}
	for _, d := range l.entries {
		if d.IsMissed() {
			return true
		}
	}
	return false
}

// Entries returns all doses in a stable order.
func (l *Log) Entries() []Dose {
	out := make([]Dose, 0, l.Len())
	if l == nil {
		return out
	}
	for _, d := range l.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].SlotKey, out[j].SlotKey
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Episode != b.Episode {
			return a.Episode.String() < b.Episode.String()
		}
		return a.Slot < b.Slot
	})
	return out
}

func (l *Log) Clone() *Log {
	c := NewLog()
	if l == nil {
		return c
	}
	for k, d := range l.entries {
		c.entries[k] = d
	}
	return c
}

// Record validates and stores a new dose for ep. Unlike Put it refuses an
// occupied slot.
func (l *Log) Record(ep *Episode, today Date, d Dose) error {
	if d.Outcome == nil {
		return invalid("status", "given time or missed reason is required")
	}
	if d.Date.IsZero() {
		return invalid("date", "date is required")
	}
	if slots := ep.SlotsPerDay(); d.Slot < 0 || d.Slot >= slots {
		return invalid("slot", "slot must be between 0 and %d", slots-1)
	}
	if !ep.InWindow(today, d.Date) {
		return invalid("date", "%s is outside the administration window", d.Date)
	}
	d.Episode = ep.ID
	if _, taken := l.Get(d.SlotKey); taken {
		return fmt.Errorf("%w: %s slot %d", ErrSlotOccupied, d.Date, d.Slot)
	}
	l.Put(d)
	return nil
}

// Remove deletes a dose of an Active episode after confirmation.
func (l *Log) Remove(ep *Episode, date Date, slot int, confirmed bool) error {
	if !ep.IsActive() {
		return notActive("delete a dose from", ep.Status)
	}
	key := SlotKey{Episode: ep.ID, Date: date, Slot: slot}
	if _, ok := l.Get(key); !ok {
		return fmt.Errorf("%w: %s slot %d", ErrDoseNotFound, date, slot)
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	l.Delete(key)
	return nil
}

func sortDoses(ds []Dose) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		ag, aok := a.Outcome.(Given)
		bg, bok := b.Outcome.(Given)
		switch {
		case aok && bok:
			if ag.Time != bg.Time {
				return ag.Time < bg.Time
			}
		case aok != bok:
			return aok
		}
		return a.Slot < b.Slot
	})
}

type doseDoc struct {
	EpisodeID  uuid.UUID `json:"episode_id"`
	Date       Date      `json:"date"`
	Slot       int       `json:"slot"`
	Status     string    `json:"status"`
	Time       string    `json:"time,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	RecordedBy string    `json:"recorded_by,omitempty"`
}

func (d Dose) MarshalJSON() ([]byte, error) {
	doc := doseDoc{
		EpisodeID:  d.Episode,
		Date:       d.Date,
		Slot:       d.Slot,
		RecordedAt: d.RecordedAt,
		RecordedBy: d.RecordedBy,
	}
	switch o := d.Outcome.(type) {
	case Given:
		doc.Status, doc.Time = "Given", o.Time
	case Missed:
		doc.Status, doc.Reason = "Missed", o.Reason
	default:
		return nil, fmt.Errorf("dose %s slot %d has no outcome", d.Date, d.Slot)
	}
	return json.Marshal(doc)
}

func (d *Dose) UnmarshalJSON(b []byte) error {
	var doc doseDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	var outcome Outcome
	switch doc.Status {
	case "Given":
		outcome = Given{Time: doc.Time}
	case "Missed":
		outcome = Missed{Reason: doc.Reason}
	default:
		return fmt.Errorf("unknown dose status %q", doc.Status)
	}
	*d = Dose{
		SlotKey:    SlotKey{Episode: doc.EpisodeID, Date: doc.Date, Slot: doc.Slot},
		Outcome:    outcome,
		RecordedAt: doc.RecordedAt,
		RecordedBy: doc.RecordedBy,
	}
	return nil
}

func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

// UnmarshalJSON rebuilds the index; a later entry for the same slot wins.
func (l *Log) UnmarshalJSON(b []byte) error {
	var doses []Dose
	if err := json.Unmarshal(b, &doses); err != nil {
		return err
	}
	l.entries = make(map[SlotKey]Dose, len(doses))
	for _, d := range doses {
		l.entries[d.SlotKey] = d
	}
	return nil
}
