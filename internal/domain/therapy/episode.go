package therapy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Episode is one antimicrobial course for a hospitalized patient.
type Episode struct {
	ID             uuid.UUID
	Drug           string
	Dose           string
	Route          string
	FrequencyHours int
	StartDate      Date
	PlannedDays    int
	RequestedBy    string
	Status         Status
	Susceptibility *Susceptibility
	Changes        []ChangeLogEntry
	CreatedAt      time.Time
}

// Susceptibility is a free-text culture/sensitivity annotation.
type Susceptibility struct {
	Note string `json:"note"`
	Date Date   `json:"date"`
}

// ChangeLogEntry is an immutable audit row written by a dose change.
type ChangeLogEntry struct {
	At     time.Time `json:"at"`
	Field  string    `json:"field"`
	Old    string    `json:"old"`
	New    string    `json:"new"`
	Reason string    `json:"reason"`
}

// EpisodeInput holds the fields needed to register a course.
type EpisodeInput struct {
	Drug           string `json:"drug"`
	Dose           string `json:"dose"`
	Route          string `json:"route"`
	FrequencyHours int    `json:"frequency_hours"`
	StartDate      Date   `json:"start_date"`
	PlannedDays    int    `json:"planned_days"`
	RequestedBy    string `json:"requested_by"`
}

// NewEpisode validates in and returns an Active episode.
func NewEpisode(in EpisodeInput, now time.Time) (*Episode, error) {
	drug := strings.TrimSpace(in.Drug)
	if drug == "" {
		return nil, invalid("drug", "drug is required")
	}
	dose := strings.TrimSpace(in.Dose)
	if dose == "" {
		return nil, invalid("dose", "dose is required")
	}
	if in.StartDate.IsZero() {
		return nil, invalid("start_date", "start date is required")
	}
	if in.FrequencyHours < 0 {
		return nil, invalid("frequency_hours", "frequency cannot be negative")
	}
	if in.PlannedDays < 0 {
		return nil, invalid("planned_days", "planned duration cannot be negative")
	}
	return &Episode{
		ID:             uuid.New(),
		Drug:           drug,
		Dose:           dose,
		Route:          strings.TrimSpace(in.Route),
		FrequencyHours: in.FrequencyHours,
		StartDate:      in.StartDate,
		PlannedDays:    in.PlannedDays,
		RequestedBy:    strings.TrimSpace(in.RequestedBy),
		Status:         Active{},
		CreatedAt:      now,
	}, nil
}

func (e *Episode) IsActive() bool {
	_, ok := e.Status.(Active)
	return ok
}

// SlotsPerDay is the number of scheduled dose slots per calendar date.
func (e *Episode) SlotsPerDay() int { return SlotsPerDay(e.FrequencyHours) }

// Clone returns a deep copy so a mutation can be staged without touching e.
func (e *Episode) Clone() *Episode {
	c := *e
	if e.Susceptibility != nil {
		s := *e.Susceptibility
		c.Susceptibility = &s
	}
	c.Changes = append([]ChangeLogEntry(nil), e.Changes...)
	return &c
}

type episodeDoc struct {
	ID             uuid.UUID        `json:"id"`
	Drug           string           `json:"drug"`
	Dose           string           `json:"dose"`
	Route          string           `json:"route,omitempty"`
	FrequencyHours int              `json:"frequency_hours,omitempty"`
	StartDate      Date             `json:"start_date"`
	PlannedDays    int              `json:"planned_days,omitempty"`
	RequestedBy    string           `json:"requested_by,omitempty"`
	Status         StatusName       `json:"status"`
	StopDate       *time.Time       `json:"stop_date,omitempty"`
	StopReason     string           `json:"stop_reason,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	ShiftedAt      *time.Time       `json:"shifted_at,omitempty"`
	ShiftReason    string           `json:"shift_reason,omitempty"`
	Susceptibility *Susceptibility  `json:"susceptibility,omitempty"`
	Changes        []ChangeLogEntry `json:"change_log"`
	CreatedAt      time.Time        `json:"created_at"`
}

// MarshalJSON flattens the status variant into the stored document: only the
// terminal fields of the current status are written.
func (e *Episode) MarshalJSON() ([]byte, error) {
	doc := episodeDoc{
		ID:             e.ID,
		Drug:           e.Drug,
		Dose:           e.Dose,
		Route:          e.Route,
		FrequencyHours: e.FrequencyHours,
		StartDate:      e.StartDate,
		PlannedDays:    e.PlannedDays,
		RequestedBy:    e.RequestedBy,
		Susceptibility: e.Susceptibility,
		Changes:        e.Changes,
		CreatedAt:      e.CreatedAt,
	}
	if doc.Changes == nil {
		doc.Changes = []ChangeLogEntry{}
	}
	if e.Status == nil {
		doc.Status = StatusActive
	} else {
		doc.Status = e.Status.Name()
	}
	switch s := e.Status.(type) {
	case Stopped:
		doc.StopDate, doc.StopReason = &s.At, s.Reason
	case Completed:
		doc.CompletedAt = &s.At
	case Shifted:
		doc.ShiftedAt, doc.ShiftReason = &s.At, s.Reason
	}
	return json.Marshal(doc)
}

func (e *Episode) UnmarshalJSON(b []byte) error {
	var doc episodeDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	status, err := statusFromDoc(doc)
	if err != nil {
		return err
	}
	*e = Episode{
		ID:             doc.ID,
		Drug:           doc.Drug,
		Dose:           doc.Dose,
		Route:          doc.Route,
		FrequencyHours: doc.FrequencyHours,
		StartDate:      doc.StartDate,
		PlannedDays:    doc.PlannedDays,
		RequestedBy:    doc.RequestedBy,
		Status:         status,
		Susceptibility: doc.Susceptibility,
		Changes:        doc.Changes,
		CreatedAt:      doc.CreatedAt,
	}
	return nil
}

func statusFromDoc(doc episodeDoc) (Status, error) {
	deref := func(t *time.Time) time.Time {
		if t == nil {
			return time.Time{}
		}
		return *t
	}
	switch doc.Status {
	case StatusActive, "":
		return Active{}, nil
	case StatusStopped:
		return Stopped{At: deref(doc.StopDate), Reason: doc.StopReason}, nil
	case StatusCompleted:
		return Completed{At: deref(doc.CompletedAt)}, nil
	case StatusShifted:
		return Shifted{At: deref(doc.ShiftedAt), Reason: doc.ShiftReason}, nil
	}
	return nil, fmt.Errorf("unknown episode status %q", doc.Status)
}
