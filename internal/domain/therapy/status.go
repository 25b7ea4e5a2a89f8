package therapy

import "time"

type StatusName string

const (
	StatusActive    StatusName = "Active"
	StatusStopped   StatusName = "Stopped"
	StatusCompleted StatusName = "Completed"
	StatusShifted   StatusName = "Shifted"
)

// Status is the principal lifecycle state of an episode. Each variant carries
// only the terminal annotation that belongs to it.
type Status interface {
	Name() StatusName
	isStatus()
}

type Active struct{}

type Stopped struct {
	At     time.Time
	Reason string
}

type Completed struct {
	At time.Time
}

type Shifted struct {
	At     time.Time
	Reason string
}

func (Active) Name() StatusName    { return StatusActive }
func (Stopped) Name() StatusName   { return StatusStopped }
func (Completed) Name() StatusName { return StatusCompleted }
func (Shifted) Name() StatusName   { return StatusShifted }

func (Active) isStatus()    {}
func (Stopped) isStatus()   {}
func (Completed) isStatus() {}
func (Shifted) isStatus()   {}

// EndedAt returns the terminal timestamp of s, if any.
func EndedAt(s Status) (time.Time, bool) {
	switch v := s.(type) {
	case Stopped:
		return v.At, true
	case Completed:
		return v.At, true
	case Shifted:
		return v.At, true
	}
	return time.Time{}, false
}
