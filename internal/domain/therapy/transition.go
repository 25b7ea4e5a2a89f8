package therapy

import (
	"strings"
	"time"
)

// Stop moves an Active episode to Stopped. The reason is mandatory.
func (e *Episode) Stop(at time.Time, reason ReasonChoice) error {
	if !e.IsActive() {
		return notActive("stop", e.Status)
	}
	text, err := reason.Resolve("stop_reason", StopReasons)
	if err != nil {
		return err
	}
	if at.IsZero() {
		return invalid("stop_date", "stop date is required")
	}
	if DateOf(at).Before(e.StartDate) {
		return invalid("stop_date", "cannot be before the start date %s", e.StartDate)
	}
	e.Status = Stopped{At: at, Reason: text}
	return nil
}

// Complete moves an Active episode to Completed.
func (e *Episode) Complete(at time.Time) error {
	if !e.IsActive() {
		return notActive("complete", e.Status)
	}
	if at.IsZero() {
		return invalid("completed_at", "completion date is required")
	}
	if DateOf(at).Before(e.StartDate) {
		return invalid("completed_at", "cannot be before the start date %s", e.StartDate)
	}
	e.Status = Completed{At: at}
	return nil
}

// Shift moves an Active episode to Shifted (switched to another agent or route).
func (e *Episode) Shift(at time.Time, reason ReasonChoice) error {
	if !e.IsActive() {
		return notActive("shift", e.Status)
	}
	text, err := reason.Resolve("shift_reason", ShiftReasons)
	if err != nil {
		return err
	}
	if at.IsZero() {
		return invalid("shifted_at", "shift date is required")
	}
	if DateOf(at).Before(e.StartDate) {
		return invalid("shifted_at", "cannot be before the start date %s", e.StartDate)
	}
	e.Status = Shifted{At: at, Reason: text}
	return nil
}

// Undo returns a terminal episode to Active and drops its terminal annotation.
// The change log and administration log are left as they are.
func (e *Episode) Undo(confirmed bool) error {
	if e.IsActive() {
		return notActive("undo", e.Status)
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	e.Status = Active{}
	return nil
}

// ChangeDose replaces the current dose and appends a change log entry.
func (e *Episode) ChangeDose(newDose string, reason ReasonChoice, at time.Time) error {
	if !e.IsActive() {
		return notActive("change the dose of", e.Status)
	}
	dose := strings.TrimSpace(newDose)
	if dose == "" {
		return invalid("dose", "new dose is required")
	}
	text, err := reason.Resolve("reason", DoseChangeReasons)
	if err != nil {
		return err
	}
	e.Changes = append(e.Changes, ChangeLogEntry{
		At:     at,
		Field:  "dose",
		Old:    e.Dose,
		New:    dose,
		Reason: text,
	})
	e.Dose = dose
	return nil
}

// Continue keeps a course running past its plan under the named clinician.
// It does not append to the change log.
func (e *Episode) Continue(clinician string) error {
	if !e.IsActive() {
		return notActive("continue", e.Status)
	}
	name := strings.TrimSpace(clinician)
	if name == "" {
		return invalid("requested_by", "resident name is required")
	}
	e.RequestedBy = name
	return nil
}

// Continuable reports whether the course has reached its planned length.
// Episodes without a plan are never offered Continue.
func (e *Episode) Continuable(today Date) bool {
	return e.IsActive() && e.PlannedDays > 0 && e.CalendarDay(today) >= e.PlannedDays
}

// AnnotateSusceptibility records (or replaces) the culture annotation.
func (e *Episode) AnnotateSusceptibility(note string, on Date) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return invalid("note", "susceptibility note is required")
	}
	if on.IsZero() {
		return invalid("date", "susceptibility date is required")
	}
	e.Susceptibility = &Susceptibility{Note: note, Date: on}
	return nil
}
