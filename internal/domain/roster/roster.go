package roster

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/amsmonitor/internal/domain/patient"
)

// Filter names. Each names one predicate used both to count and to select.
const (
	FilterActive      = "active"
	FilterRedFlag     = "red_flag"
	FilterNew         = "new"
	FilterNearingStop = "nearing_stop"
)

// Predicate selects roster members from a read projection.
type Predicate func(v *patient.View) bool

func admitted(v *patient.View) bool {
	return v.AdmissionStatus == patient.StatusAdmitted
}

var predicates = map[string]Predicate{
	FilterActive:      admitted,
	FilterRedFlag:     func(v *patient.View) bool { return admitted(v) && v.Flags.Any() },
	FilterNew:         func(v *patient.View) bool { return admitted(v) && v.IsNew },
	FilterNearingStop: func(v *patient.View) bool { return admitted(v) && v.NearingStop },
}

// FilterNames lists the supported filters in display order.
func FilterNames() []string {
	return []string{FilterActive, FilterRedFlag, FilterNew, FilterNearingStop}
}

// Lookup returns the named predicate. An empty name selects FilterActive.
func Lookup(name string) (Predicate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = FilterActive
	}
	p, ok := predicates[name]
	if !ok {
		return nil, fmt.Errorf("unknown roster filter %q (want one of %s)", name, strings.Join(FilterNames(), ", "))
	}
	return p, nil
}

// Summary holds the roster-wide KPIs.
type Summary struct {
	ActiveCount      int       `json:"active_count"`
	RedFlagCount     int       `json:"red_flag_count"`
	NewCount         int       `json:"new_count"`
	NearingStopCount int       `json:"nearing_stop_count"`
	AsOf             time.Time `json:"as_of"`
}

// Count reports how many views match the named filter.
func Count(views []*patient.View, name string) (int, error) {
	selected, err := Select(views, name)
	return len(selected), err
}

// Select returns the views matching the named filter, in input order.
func Select(views []*patient.View, name string) ([]*patient.View, error) {
	p, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]*patient.View, 0, len(views))
	for _, v := range views {
		if p(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Summarize counts every KPI with the same predicates Select uses.
func Summarize(views []*patient.View, asOf time.Time) Summary {
	count := func(name string) int {
		n, _ := Count(views, name)
		return n
	}
	return Summary{
		ActiveCount:      count(FilterActive),
		RedFlagCount:     count(FilterRedFlag),
		NewCount:         count(FilterNew),
		NearingStopCount: count(FilterNearingStop),
		AsOf:             asOf,
	}
}

// Entry is one roster row.
type Entry struct {
	ID             uuid.UUID        `json:"id"`
	HospitalNumber string           `json:"hospital_number"`
	Name           string           `json:"name"`
	Ward           string           `json:"ward"`
	Bed            string           `json:"bed"`
	EGFR           string           `json:"egfr"`
	Diagnosis      string           `json:"diagnosis"`
	Flags          patient.RedFlags `json:"flags"`
	IsNew          bool             `json:"is_new"`
	NearingStop    bool             `json:"nearing_stop"`
	ActiveCourses  []string         `json:"active_courses"`
}

// Entries converts views into rows sorted by ward then bed.
func Entries(views []*patient.View) []Entry {
	out := make([]Entry, 0, len(views))
	for _, v := range views {
		e := Entry{
			ID:             v.ID,
			HospitalNumber: v.HospitalNumber,
			Name:           v.Name,
			Ward:           v.Ward,
			Bed:            v.Bed,
			EGFR:           v.EGFR,
			Diagnosis:      v.Diagnosis,
			Flags:          v.Flags,
			IsNew:          v.IsNew,
			NearingStop:    v.NearingStop,
			ActiveCourses:  []string{},
		}
		for _, ev := range v.Episodes {
			if ev.Episode.IsActive() {
				e.ActiveCourses = append(e.ActiveCourses, fmt.Sprintf("%s %s (%s)", ev.Episode.Drug, ev.Episode.Dose, ev.DoseDuration))
			}
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ward != out[j].Ward {
			return out[i].Ward < out[j].Ward
		}
		return out[i].Bed < out[j].Bed
	})
	return out
}
