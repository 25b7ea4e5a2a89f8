package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
)

type AdmissionStatus string

const (
	StatusAdmitted   AdmissionStatus = "Admitted"
	StatusDischarged AdmissionStatus = "Discharged"
	StatusExpired    AdmissionStatus = "Expired"
)

// Record is one hospitalization. It owns its episodes, administration log and
// transfer history and is persisted as a single document.
type Record struct {
	ID              uuid.UUID          `json:"id"`
	HospitalNumber  string             `json:"hospital_number"`
	Name            string             `json:"name"`
	Age             int                `json:"age"`
	Sex             string             `json:"sex"`
	Ward            string             `json:"ward"`
	Bed             string             `json:"bed"`
	AdmittedOn      therapy.Date       `json:"admitted_on"`
	AdmissionStatus AdmissionStatus    `json:"admission_status"`
	DischargedAt    *time.Time         `json:"discharged_at"`
	Creatinine      string             `json:"creatinine"`
	EGFR            string             `json:"egfr"`
	OnDialysis      bool               `json:"on_dialysis"`
	Diagnosis       string             `json:"diagnosis"`
	Episodes        []*therapy.Episode `json:"episodes"`
	Administrations *therapy.Log       `json:"administrations"`
	Transfers       []TransferLogEntry `json:"transfers"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	LastModifiedBy  string             `json:"last_modified_by"`
}

// Top-level document keys, used to name the fields a mutation replaces.
const (
	FieldWard            = "ward"
	FieldBed             = "bed"
	FieldAdmissionStatus = "admission_status"
	FieldDischargedAt    = "discharged_at"
	FieldCreatinine      = "creatinine"
	FieldEGFR            = "egfr"
	FieldOnDialysis      = "on_dialysis"
	FieldDiagnosis       = "diagnosis"
	FieldEpisodes        = "episodes"
	FieldAdministrations = "administrations"
	FieldTransfers       = "transfers"
	FieldUpdatedAt       = "updated_at"
	FieldLastModifiedBy  = "last_modified_by"
)

// AdmitInput carries the registration fields of a new hospitalization.
type AdmitInput struct {
	HospitalNumber string       `json:"hospital_number"`
	Name           string       `json:"name"`
	Age            int          `json:"age"`
	Sex            string       `json:"sex"`
	Ward           string       `json:"ward"`
	Bed            string       `json:"bed"`
	AdmittedOn     therapy.Date `json:"admitted_on"`
	Creatinine     string       `json:"creatinine"`
	EGFR           string       `json:"egfr"`
	OnDialysis     bool         `json:"on_dialysis"`
	Diagnosis      string       `json:"diagnosis"`
}

// ClinicalInput replaces the renal and diagnosis fields.
type ClinicalInput struct {
	Creatinine string `json:"creatinine"`
	EGFR       string `json:"egfr"`
	OnDialysis bool   `json:"on_dialysis"`
	Diagnosis  string `json:"diagnosis"`
}

func newRecord(in AdmitInput, now time.Time) (*Record, error) {
	if strings.TrimSpace(in.HospitalNumber) == "" {
		return nil, &therapy.ValidationError{Field: "hospital_number", Message: "hospital number is required"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, &therapy.ValidationError{Field: "name", Message: "name is required"}
	}
	if strings.TrimSpace(in.Ward) == "" {
		return nil, &therapy.ValidationError{Field: "ward", Message: "ward is required"}
	}
	if in.Age < 0 {
		return nil, &therapy.ValidationError{Field: "age", Message: "age cannot be negative"}
	}
	admitted := in.AdmittedOn
	if admitted.IsZero() {
		admitted = therapy.DateOf(now)
	}
	return &Record{
		HospitalNumber:  strings.TrimSpace(in.HospitalNumber),
		Name:            strings.TrimSpace(in.Name),
		Age:             in.Age,
		Sex:             in.Sex,
		Ward:            strings.TrimSpace(in.Ward),
		Bed:             strings.TrimSpace(in.Bed),
		AdmittedOn:      admitted,
		AdmissionStatus: StatusAdmitted,
		Creatinine:      in.Creatinine,
		EGFR:            in.EGFR,
		OnDialysis:      in.OnDialysis,
		Diagnosis:       in.Diagnosis,
		Episodes:        []*therapy.Episode{},
		Administrations: therapy.NewLog(),
		Transfers:       []TransferLogEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Episode finds an episode by id.
func (r *Record) Episode(id uuid.UUID) (*therapy.Episode, error) {
	for _, ep := range r.Episodes {
		if ep.ID == id {
			return ep, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEpisodeNotFound, id)
}

func (r *Record) IsAdmitted() bool { return r.AdmissionStatus == StatusAdmitted }

// Log returns the administration log, creating it for legacy documents.
func (r *Record) Log() *therapy.Log {
	if r.Administrations == nil {
		r.Administrations = therapy.NewLog()
	}
	return r.Administrations
}

func (r *Record) Discharge(at time.Time) error {
	if r.AdmissionStatus != StatusAdmitted {
		return fmt.Errorf("%w: cannot discharge a %s patient", therapy.ErrInvalidTransition, r.AdmissionStatus)
	}
	if at.IsZero() {
		return &therapy.ValidationError{Field: "discharged_at", Message: "discharge time is required"}
	}
	r.AdmissionStatus = StatusDischarged
	r.DischargedAt = &at
	return nil
}

func (r *Record) MarkExpired(at time.Time) error {
	if r.AdmissionStatus != StatusAdmitted {
		return fmt.Errorf("%w: cannot mark a %s patient expired", therapy.ErrInvalidTransition, r.AdmissionStatus)
	}
	if at.IsZero() {
		return &therapy.ValidationError{Field: "discharged_at", Message: "time of death is required"}
	}
	r.AdmissionStatus = StatusExpired
	r.DischargedAt = &at
	return nil
}

func (r *Record) Readmit() error {
	if r.AdmissionStatus != StatusDischarged {
		return fmt.Errorf("%w: cannot re-admit a %s patient", therapy.ErrInvalidTransition, r.AdmissionStatus)
	}
	r.AdmissionStatus = StatusAdmitted
	r.DischargedAt = nil
	return nil
}

func (r *Record) UpdateClinical(in ClinicalInput) {
	r.Creatinine = strings.TrimSpace(in.Creatinine)
	r.EGFR = strings.TrimSpace(in.EGFR)
	r.OnDialysis = in.OnDialysis
	r.Diagnosis = strings.TrimSpace(in.Diagnosis)
}

// Patch marshals the named top-level fields of r.
func (r *Record) Patch(fields ...string) (Patch, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	p := make(Patch, len(fields))
	for _, f := range fields {
		v, ok := doc[f]
		if !ok {
			return nil, fmt.Errorf("unknown record field %q", f)
		}
		p[f] = v
	}
	return p, nil
}
