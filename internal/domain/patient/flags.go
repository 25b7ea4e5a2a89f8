package patient

import (
	"strconv"
	"strings"
	"time"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
)

// RenalAlertEGFR is the eGFR below which a patient is flagged.
const RenalAlertEGFR = 30

// RedFlags are recomputed from the stored facts on every read.
type RedFlags struct {
	MissedDoses      bool `json:"has_missed_doses"`
	RenalAlert       bool `json:"has_renal_alert"`
	ProlongedTherapy bool `json:"has_prolonged_therapy"`
}

func (f RedFlags) Any() bool {
	return f.MissedDoses || f.RenalAlert || f.ProlongedTherapy
}

func (r *Record) Flags(now time.Time) RedFlags {
	today := therapy.DateOf(now)
	flags := RedFlags{
		MissedDoses: r.Administrations.HasMissed(),
		RenalAlert:  renalAlert(r.EGFR),
	}
	for _, ep := range r.Episodes {
		if ep.Prolonged(today) {
			flags.ProlongedTherapy = true
			break
		}
	}
	return flags
}

// HasNearingStop reports any Active episode within two days of its plan.
func (r *Record) HasNearingStop(now time.Time) bool {
	today := therapy.DateOf(now)
	for _, ep := range r.Episodes {
		if ep.NearingStop(today) {
			return true
		}
	}
	return false
}

// ActiveEpisodes counts courses still running.
func (r *Record) ActiveEpisodes() int {
	n := 0
	for _, ep := range r.Episodes {
		if ep.IsActive() {
			n++
		}
	}
	return n
}

// renalAlert reads the leading number of a free-text lab value, so
// "25 mL/min" and "<15" both count.
func renalAlert(egfr string) bool {
	v, ok := leadingNumber(egfr)
	return ok && v < RenalAlertEGFR
}

func leadingNumber(s string) (float64, bool) {
	s = strings.TrimLeft(strings.TrimSpace(s), "<>= ")
	end, dot := 0, false
	for end < len(s) {
		c := s[end]
		if c == '.' && !dot {
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
