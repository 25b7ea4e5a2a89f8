package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
	"github.com/ehr/amsmonitor/internal/platform/metrics"
	"github.com/ehr/amsmonitor/internal/platform/middleware"
)

// Service is the only writer of patient records. Every mutation works on a
// freshly loaded copy and persists the touched top-level fields before the
// new view is returned; on error nothing is returned.
type Service struct {
	store   Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	loc     *time.Location
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "patient").Logger(),
		clock:  time.Now,
		loc:    time.UTC,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetLocation sets the hospital time zone used for calendar dates.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

func (s *Service) now() time.Time { return s.clock().In(s.loc) }

// -- Reads --

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	r, err := s.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewView(r, s.now()), nil
}

func (s *Service) List(ctx context.Context) ([]*View, error) {
	records, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]*View, 0, len(records))
	for _, r := range records {
		views = append(views, NewView(r, now))
	}
	return views, nil
}

// -- Admission --

func (s *Service) Admit(ctx context.Context, in AdmitInput) (*View, error) {
	now := s.now()
	r, err := newRecord(in, now)
	if err != nil {
		s.rejected(s.logger.With().Str("op", "admit").Logger(), "admit", err)
		return nil, err
	}
	r.LastModifiedBy = middleware.ActorFromContext(ctx)
	id, err := s.store.Create(ctx, r)
	if err != nil {
		s.failed(s.logger.With().Str("op", "admit").Logger(), "admit", err)
		return nil, fmt.Errorf("admit: %w", err)
	}
	r.ID = id
	s.logger.Info().Str("op", "admit").Str("patient_id", id.String()).
		Str("actor", r.LastModifiedBy).Str("ward", r.Ward).Msg("patient admitted")
	s.metrics.RecordMutation("admit", metrics.OutcomeOK)
	return NewView(r, now), nil
}

func (s *Service) UpdateClinical(ctx context.Context, id uuid.UUID, in ClinicalInput) (*View, error) {
	return s.mutate(ctx, "update_clinical", id, uuid.Nil, func(r *Record, _ time.Time) ([]string, error) {
		r.UpdateClinical(in)
		return []string{FieldCreatinine, FieldEGFR, FieldOnDialysis, FieldDiagnosis}, nil
	})
}

func (s *Service) Discharge(ctx context.Context, id uuid.UUID, at time.Time) (*View, error) {
	return s.mutate(ctx, "discharge", id, uuid.Nil, func(r *Record, now time.Time) ([]string, error) {
		return []string{FieldAdmissionStatus, FieldDischargedAt}, r.Discharge(orNow(at, now))
	})
}

func (s *Service) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (*View, error) {
	return s.mutate(ctx, "mark_expired", id, uuid.Nil, func(r *Record, now time.Time) ([]string, error) {
		return []string{FieldAdmissionStatus, FieldDischargedAt}, r.MarkExpired(orNow(at, now))
	})
}

func (s *Service) Readmit(ctx context.Context, id uuid.UUID) (*View, error) {
	return s.mutate(ctx, "readmit", id, uuid.Nil, func(r *Record, _ time.Time) ([]string, error) {
		return []string{FieldAdmissionStatus, FieldDischargedAt}, r.Readmit()
	})
}

// -- Transfers --

func (s *Service) Transfer(ctx context.Context, id uuid.UUID, in TransferInput) (*View, error) {
	return s.mutate(ctx, "transfer", id, uuid.Nil, func(r *Record, now time.Time) ([]string, error) {
		in.At = orNow(in.At, now)
		_, err := r.Transfer(in)
		return []string{FieldTransfers, FieldWard, FieldBed}, err
	})
}

func (s *Service) EditTransfer(ctx context.Context, id, transferID uuid.UUID, ward, bed string) (*View, error) {
	return s.mutate(ctx, "edit_transfer", id, uuid.Nil, func(r *Record, _ time.Time) ([]string, error) {
		return []string{FieldTransfers, FieldWard, FieldBed}, r.EditTransfer(transferID, ward, bed)
	})
}

// -- Episodes --

func (s *Service) RegisterEpisode(ctx context.Context, id uuid.UUID, in therapy.EpisodeInput) (*View, error) {
	return s.mutate(ctx, "register_episode", id, uuid.Nil, func(r *Record, now time.Time) ([]string, error) {
		if !r.IsAdmitted() {
			return nil, fmt.Errorf("%w: cannot start therapy for a %s patient", therapy.ErrInvalidTransition, r.AdmissionStatus)
		}
		if in.StartDate.IsZero() {
			in.StartDate = therapy.DateOf(now)
		}
		ep, err := therapy.NewEpisode(in, now)
		if err != nil {
			return nil, err
		}
		r.Episodes = append(r.Episodes, ep)
		return []string{FieldEpisodes}, nil
	})
}

func (s *Service) Stop(ctx context.Context, id, episodeID uuid.UUID, at time.Time, reason therapy.ReasonChoice) (*View, error) {
	return s.episodeOp(ctx, "stop", id, episodeID, func(_ *Record, ep *therapy.Episode, now time.Time) error {
		return ep.Stop(orNow(at, now), reason)
	})
}

func (s *Service) Complete(ctx context.Context, id, episodeID uuid.UUID, at time.Time) (*View, error) {
	return s.episodeOp(ctx, "complete", id, episodeID, func(_ *Record, ep *therapy.Episode, now time.Time) error {
		return ep.Complete(orNow(at, now))
	})
}

func (s *Service) Shift(ctx context.Context, id, episodeID uuid.UUID, at time.Time, reason therapy.ReasonChoice) (*View, error) {
	return s.episodeOp(ctx, "shift", id, episodeID, func(_ *Record, ep *therapy.Episode, now time.Time) error {
		return ep.Shift(orNow(at, now), reason)
	})
}

func (s *Service) Undo(ctx context.Context, id, episodeID uuid.UUID, confirmed bool) (*View, error) {
	return s.episodeOp(ctx, "undo", id, episodeID, func(_ *Record, ep *therapy.Episode, _ time.Time) error {
		return ep.Undo(confirmed)
	})
}

func (s *Service) ChangeDose(ctx context.Context, id, episodeID uuid.UUID, dose string, reason therapy.ReasonChoice) (*View, error) {
	return s.episodeOp(ctx, "change_dose", id, episodeID, func(_ *Record, ep *therapy.Episode, now time.Time) error {
		return ep.ChangeDose(dose, reason, now)
	})
}

func (s *Service) Continue(ctx context.Context, id, episodeID uuid.UUID, clinician string) (*View, error) {
	return s.episodeOp(ctx, "continue", id, episodeID, func(_ *Record, ep *therapy.Episode, _ time.Time) error {
		return ep.Continue(clinician)
	})
}

func (s *Service) AnnotateSusceptibility(ctx context.Context, id, episodeID uuid.UUID, note string, on therapy.Date) (*View, error) {
	return s.episodeOp(ctx, "annotate_susceptibility", id, episodeID, func(_ *Record, ep *therapy.Episode, now time.Time) error {
		if on.IsZero() {
			on = therapy.DateOf(now)
		}
		return ep.AnnotateSusceptibility(note, on)
	})
}

// -- Administration log --

// DoseInput is one dose to record. Status selects which of Time or Reason applies.
type DoseInput struct {
	Date   therapy.Date         `json:"date"`
	Slot   int                  `json:"slot"`
	Status string               `json:"status"`
	Time   string               `json:"time"`
	Reason therapy.ReasonChoice `json:"reason"`
}

func (in DoseInput) outcome() (therapy.Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(in.Status)) {
	case "given":
		return therapy.NewGiven(in.Time)
	case "missed":
		return therapy.NewMissed(in.Reason)
	}
	return nil, &therapy.ValidationError{Field: "status", Message: "status must be Given or Missed"}
}

func (s *Service) LogDose(ctx context.Context, id, episodeID uuid.UUID, in DoseInput) (*View, error) {
	return s.mutate(ctx, "log_dose", id, episodeID, func(r *Record, now time.Time) ([]string, error) {
		ep, err := r.Episode(episodeID)
		if err != nil {
			return nil, err
		}
		outcome, err := in.outcome()
		if err != nil {
			return nil, err
		}
		d := therapy.Dose{
			SlotKey:    therapy.SlotKey{Episode: ep.ID, Date: in.Date, Slot: in.Slot},
			Outcome:    outcome,
			RecordedAt: now,
			RecordedBy: middleware.ActorFromContext(ctx),
		}
		return []string{FieldAdministrations}, r.Log().Record(ep, therapy.DateOf(now), d)
	})
}

func (s *Service) DeleteDose(ctx context.Context, id, episodeID uuid.UUID, date therapy.Date, slot int, confirmed bool) (*View, error) {
	return s.mutate(ctx, "delete_dose", id, episodeID, func(r *Record, _ time.Time) ([]string, error) {
		ep, err := r.Episode(episodeID)
		if err != nil {
			return nil, err
		}
		return []string{FieldAdministrations}, r.Log().Remove(ep, date, slot, confirmed)
	})
}

// -- internals --

func (s *Service) episodeOp(ctx context.Context, op string, id, episodeID uuid.UUID, fn func(*Record, *therapy.Episode, time.Time) error) (*View, error) {
	return s.mutate(ctx, op, id, episodeID, func(r *Record, now time.Time) ([]string, error) {
		ep, err := r.Episode(episodeID)
		if err != nil {
			return nil, err
		}
		return []string{FieldEpisodes}, fn(r, ep, now)
	})
}

// mutate loads id, applies fn and persists the fields fn reports touched.
// fn's field list is ignored when it returns an error.
func (s *Service) mutate(ctx context.Context, op string, id, episodeID uuid.UUID, fn func(*Record, time.Time) ([]string, error)) (*View, error) {
	lc := s.logger.With().Str("op", op).Str("patient_id", id.String())
	if episodeID != uuid.Nil {
		lc = lc.Str("episode_id", episodeID.String())
	}
	log := lc.Logger()

	r, err := s.store.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.rejected(log, op, err)
			return nil, err
		}
		s.failed(log, op, err)
		return nil, fmt.Errorf("%s: load: %w", op, err)
	}
	now := s.now()
	fields, err := fn(r, now)
	if err != nil {
		s.rejected(log, op, err)
		return nil, err
	}

	actor := middleware.ActorFromContext(ctx)
	r.UpdatedAt = now
	r.LastModifiedBy = actor
	patch, err := r.Patch(append(fields, FieldUpdatedAt, FieldLastModifiedBy)...)
	if err != nil {
		s.failed(log, op, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		s.failed(log, op, err)
		return nil, fmt.Errorf("%s: persist: %w", op, err)
	}

	log.Info().Str("actor", actor).Strs("fields", fields).Msg("record updated")
	s.metrics.RecordMutation(op, metrics.OutcomeOK)
	return NewView(r, now), nil
}

func (s *Service) rejected(log zerolog.Logger, op string, err error) {
	log.Info().Err(err).Msg("mutation rejected")
	s.metrics.RecordMutation(op, metrics.OutcomeRejected)
}

func (s *Service) failed(log zerolog.Logger, op string, err error) {
	log.Error().Err(err).Msg("mutation failed")
	s.metrics.RecordMutation(op, metrics.OutcomeFailed)
}

func orNow(at, now time.Time) time.Time {
	if at.IsZero() {
		return now
	}
	return at.In(now.Location())
}
