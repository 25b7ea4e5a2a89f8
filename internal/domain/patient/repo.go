package patient

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("patient record not found")
	ErrEpisodeNotFound  = errors.New("episode not found")
	ErrTransferNotFound = errors.New("transfer not found")
)

// Patch maps top-level document keys to their replacement JSON values.
// Keys absent from a Patch are left untouched by Update.
type Patch map[string]json.RawMessage

func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// Store persists patient records as documents.
type Store interface {
	// Create assigns and returns a new id.
	Create(ctx context.Context, r *Record) (uuid.UUID, error)
	// Fetch returns ErrNotFound when no document has the id.
	Fetch(ctx context.Context, id uuid.UUID) (*Record, error)
	FetchAll(ctx context.Context) ([]*Record, error)
	// Update replaces only the keys present in patch.
	Update(ctx context.Context, id uuid.UUID, patch Patch) error
}
