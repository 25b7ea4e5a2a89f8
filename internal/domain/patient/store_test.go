package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// memStore keeps documents as maps of top-level keys, so Update behaves
// like the real stores: only the patched keys change.
type memStore struct {
	docs       map[uuid.UUID]map[string]json.RawMessage
	order      []uuid.UUID
	updates    []Patch
	failUpdate error
	failFetch  error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uuid.UUID]map[string]json.RawMessage)}
}

func (m *memStore) Create(_ context.Context, r *Record) (uuid.UUID, error) {
	r.ID = uuid.New()
	b, err := json.Marshal(r)
	if err != nil {
		return uuid.Nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return uuid.Nil, err
	}
	m.docs[r.ID] = doc
	m.order = append(m.order, r.ID)
	return r.ID, nil
}

func (m *memStore) Fetch(_ context.Context, id uuid.UUID) (*Record, error) {
	if m.failFetch != nil {
		return nil, m.failFetch
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return decodeRecord(b)
}

func (m *memStore) FetchAll(ctx context.Context) ([]*Record, error) {
	if m.failFetch != nil {
		return nil, m.failFetch
	}
	out := make([]*Record, 0, len(m.order))
	for _, id := range m.order {
		r, err := m.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, patch Patch) error {
	if m.failUpdate != nil {
		return m.failUpdate
	}
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range patch {
		if _, known := doc[k]; !known {
			return fmt.Errorf("unexpected key %q", k)
		}
		doc[k] = v
	}
	m.updates = append(m.updates, patch)
	return nil
}

func (m *memStore) lastPatch() Patch {
	if len(m.updates) == 0 {
		return nil
	}
	return m.updates[len(m.updates)-1]
}
