package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type storeRedis struct {
	c      *redis.Client
	prefix string
}

// NewRedisStore keeps each record as a hash with one field per top-level
// document key, plus an index set of ids.
func NewRedisStore(c *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "ams"
	}
	return &storeRedis{c: c, prefix: prefix}
}

func (s *storeRedis) key(id uuid.UUID) string {
	return s.prefix + ":patient:" + id.String()
}

func (s *storeRedis) indexKey() string {
	return s.prefix + ":patients"
}

func (s *storeRedis) Create(ctx context.Context, r *Record) (uuid.UUID, error) {
	r.ID = uuid.New()
	b, err := json.Marshal(r)
	if err != nil {
		return uuid.Nil, fmt.Errorf("patient create: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return uuid.Nil, fmt.Errorf("patient create: %w", err)
	}
	_, err = s.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(r.ID), hashValues(doc))
		pipe.SAdd(ctx, s.indexKey(), r.ID.String())
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("patient create: %w", err)
	}
	return r.ID, nil
}

func (s *storeRedis) Fetch(ctx context.Context, id uuid.UUID) (*Record, error) {
	fields, err := s.c.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("patient fetch: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeHash(fields)
}

func (s *storeRedis) FetchAll(ctx context.Context) ([]*Record, error) {
	ids, err := s.c.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("patient fetch all: %w", err)
	}
	cmds := make([]*redis.StringStringMapCmd, 0, len(ids))
	_, err = s.c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, pipe.HGetAll(ctx, s.prefix+":patient:"+id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("patient fetch all: %w", err)
	}
	out := make([]*Record, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		r, err := decodeHash(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortByCreated(out)
	return out, nil
}

func (s *storeRedis) Update(ctx context.Context, id uuid.UUID, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}
	key := s.key(id)
	return s.c.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("patient update: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(patch))
			return nil
		})
		if err != nil {
			return fmt.Errorf("patient update: %w", err)
		}
		return nil
	}, key)
}

func hashValues(doc map[string]json.RawMessage) map[string]interface{} {
	values := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		values[k] = string(v)
	}
	return values
}

func decodeHash(fields map[string]string) (*Record, error) {
	doc := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		doc[k] = json.RawMessage(v)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode patient record: %w", err)
	}
	return decodeRecord(b)
}
