package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
)

// TransferLogEntry is one ward/bed move.
type TransferLogEntry struct {
	ID       uuid.UUID `json:"id"`
	At       time.Time `json:"at"`
	FromWard string    `json:"from_ward"`
	FromBed  string    `json:"from_bed"`
	ToWard   string    `json:"to_ward"`
	ToBed    string    `json:"to_bed"`
}

type TransferInput struct {
	Ward string    `json:"ward"`
	Bed  string    `json:"bed"`
	At   time.Time `json:"at"`
}

func (in TransferInput) validate() (string, string, error) {
	ward, bed := strings.TrimSpace(in.Ward), strings.TrimSpace(in.Bed)
	if ward == "" {
		return "", "", &therapy.ValidationError{Field: "ward", Message: "destination ward is required"}
	}
	if bed == "" {
		return "", "", &therapy.ValidationError{Field: "bed", Message: "destination bed is required"}
	}
	return ward, bed, nil
}

// Transfer appends a move from the current location and updates the live ward/bed.
func (r *Record) Transfer(in TransferInput) (*TransferLogEntry, error) {
	if !r.IsAdmitted() {
		return nil, fmt.Errorf("%w: cannot transfer a %s patient", therapy.ErrInvalidTransition, r.AdmissionStatus)
	}
	ward, bed, err := in.validate()
	if err != nil {
		return nil, err
	}
	if in.At.IsZero() {
		return nil, &therapy.ValidationError{Field: "at", Message: "transfer time is required"}
	}
	entry := TransferLogEntry{
		ID:       uuid.New(),
		At:       in.At,
		FromWard: r.Ward,
		FromBed:  r.Bed,
		ToWard:   ward,
		ToBed:    bed,
	}
	r.Transfers = append(r.Transfers, entry)
	r.Ward, r.Bed = ward, bed
	return &r.Transfers[len(r.Transfers)-1], nil
}

// EditTransfer corrects the destination of an entry. Only the most recent
// entry drives the live location.
func (r *Record) EditTransfer(id uuid.UUID, ward, bed string) error {
	ward, bed, err := TransferInput{Ward: ward, Bed: bed}.validate()
	if err != nil {
		return err
	}
	for i := range r.Transfers {
		if r.Transfers[i].ID != id {
			continue
		}
		r.Transfers[i].ToWard, r.Transfers[i].ToBed = ward, bed
		if i == len(r.Transfers)-1 {
			r.Ward, r.Bed = ward, bed
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTransferNotFound, id)
}
