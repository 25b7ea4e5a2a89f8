package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/amsmonitor/internal/platform/db"
)

type storePG struct {
	pool *pgxpool.Pool
}

// NewPGStore keeps each record as one JSONB document in patient_record.
func NewPGStore(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *storePG) Create(ctx context.Context, r *Record) (uuid.UUID, error) {
	r.ID = uuid.New()
	doc, err := json.Marshal(r)
	if err != nil {
		return uuid.Nil, fmt.Errorf("patient create: %w", err)
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO patient_record (id, doc, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $3)`,
		r.ID, doc, r.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("patient create: %w", err)
	}
	return r.ID, nil
}

func (s *storePG) Fetch(ctx context.Context, id uuid.UUID) (*Record, error) {
	var doc []byte
	err := s.conn(ctx).QueryRow(ctx, `SELECT doc FROM patient_record WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient fetch: %w", err)
	}
	return decodeRecord(doc)
}

func (s *storePG) FetchAll(ctx context.Context) ([]*Record, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT doc FROM patient_record ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("patient fetch all: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("patient fetch all: %w", err)
		}
		r, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *storePG) Update(ctx context.Context, id uuid.UUID, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE patient_record SET doc = doc || $2::jsonb, updated_at = now()
		WHERE id = $1`, id, b)
	if err != nil {
		return fmt.Errorf("patient update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeRecord(doc []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode patient record: %w", err)
	}
	r.Log()
	return &r, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
