package roster

import (
	"context"
	"io"
	"time"

	"github.com/ehr/amsmonitor/internal/domain/patient"
	"github.com/ehr/amsmonitor/internal/platform/metrics"
)

// Source yields freshly derived views of every record.
type Source interface {
	List(ctx context.Context) ([]*patient.View, error)
}

type Service struct {
	src     Source
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewService(src Source) *Service {
	return &Service{src: src, clock: time.Now}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	views, err := s.src.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(views, s.clock()), nil
}

func (s *Service) Filter(ctx context.Context, name string) ([]Entry, error) {
	if _, err := Lookup(name); err != nil {
		return nil, err
	}
	views, err := s.src.List(ctx)
	if err != nil {
		return nil, err
	}
	selected, err := Select(views, name)
	if err != nil {
		return nil, err
	}
	return Entries(selected), nil
}

// Export writes the filtered roster and the full KPI summary from one read.
func (s *Service) Export(ctx context.Context, w io.Writer, name string) error {
	if _, err := Lookup(name); err != nil {
		return err
	}
	views, err := s.src.List(ctx)
	if err != nil {
		return err
	}
	selected, err := Select(views, name)
	if err != nil {
		return err
	}
	if name == "" {
		name = FilterActive
	}
	if err := WriteXLSX(w, name, Entries(selected), Summarize(views, s.clock())); err != nil {
		return err
	}
	s.metrics.RecordRosterExport()
	return nil
}
