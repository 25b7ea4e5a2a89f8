package patient

import (
	"sort"
	"time"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
)

// NewAdmissionWindow is how long a record counts as a new admission.
const NewAdmissionWindow = 24 * time.Hour

// View is the read model of a record. Everything beyond the stored
// document is derived at read time.
type View struct {
	*Record
	Flags       RedFlags      `json:"flags"`
	IsNew       bool          `json:"is_new"`
	NearingStop bool          `json:"nearing_stop"`
	Episodes    []EpisodeView `json:"episodes"`
}

type EpisodeView struct {
	Episode      *therapy.Episode `json:"episode"`
	SlotsPerDay  int              `json:"slots_per_day"`
	CalendarDay  int              `json:"calendar_day"`
	DoseDuration string           `json:"dose_duration"`
	DosesGiven   int              `json:"doses_given"`
	Continuable  bool             `json:"continuable"`
	NearingStop  bool             `json:"nearing_stop"`
	Days         []DayView        `json:"days"`
}

type DayView struct {
	Date      therapy.Date `json:"date"`
	DayNumber int          `json:"day_number"`
	Slots     []SlotView   `json:"slots"`
}

// SlotView is one cell of the schedule grid. Status is empty for an
// unrecorded slot.
type SlotView struct {
	Slot       int        `json:"slot"`
	Status     string     `json:"status,omitempty"`
	Time       string     `json:"time,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	RecordedBy string     `json:"recorded_by,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// IsNew reports a record created within NewAdmissionWindow of now.
func (r *Record) IsNew(now time.Time) bool {
	return now.Sub(r.CreatedAt) < NewAdmissionWindow
}

// NewView derives the read model of r at now.
func NewView(r *Record, now time.Time) *View {
	today := therapy.DateOf(now)
	v := &View{
		Record:      r,
		Flags:       r.Flags(now),
		IsNew:       r.IsNew(now),
		NearingStop: r.HasNearingStop(now),
		Episodes:    make([]EpisodeView, 0, len(r.Episodes)),
	}
	for _, ep := range r.Episodes {
		v.Episodes = append(v.Episodes, newEpisodeView(ep, r.Administrations, today))
	}
	return v
}

func newEpisodeView(ep *therapy.Episode, log *therapy.Log, today therapy.Date) EpisodeView {
	given := log.GivenCount(ep.ID)
	ev := EpisodeView{
		Episode:      ep,
		SlotsPerDay:  ep.SlotsPerDay(),
		CalendarDay:  ep.CalendarDay(today),
		DoseDuration: therapy.NewDoseDuration(ep.FrequencyHours, given).Label(ep.IsActive()),
		DosesGiven:   given,
		Continuable:  ep.Continuable(today),
		NearingStop:  ep.NearingStop(today),
	}
	for _, date := range ep.Window(today) {
		day := DayView{
			Date:      date,
			DayNumber: therapy.DayNumber(ep.StartDate, date),
			Slots:     make([]SlotView, ev.SlotsPerDay),
		}
		for slot := range day.Slots {
			cell := SlotView{Slot: slot}
			if d, ok := log.Get(therapy.SlotKey{Episode: ep.ID, Date: date, Slot: slot}); ok {
				at := d.RecordedAt
				cell.RecordedBy, cell.RecordedAt = d.RecordedBy, &at
				switch o := d.Outcome.(type) {
				case therapy.Given:
					cell.Status, cell.Time = "Given", o.Time
				case therapy.Missed:
					cell.Status, cell.Reason = "Missed", o.Reason
				}
			}
			day.Slots[slot] = cell
		}
		ev.Days = append(ev.Days, day)
	}
	return ev
}

func sortByCreated(rs []*Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
