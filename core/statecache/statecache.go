package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion tags every persisted record so a future format change can be
// migrated instead of silently misread. A record with a different version is
// treated as absent by LoadRecord.
const SchemaVersion = 1

// Store is the durable key/value persistence used as the boot cache for
// commerce and session state. Persistence is a cache, not a source of truth:
// callers re-validate whatever they load. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// record is the versioned envelope wrapped around every persisted value.
type record struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// SaveRecord serializes v inside a versioned envelope and writes it under key.
func SaveRecord(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("statecache: marshal %q: %w", key, err)
	}

	env, err := json.Marshal(record{Version: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("statecache: marshal envelope %q: %w", key, err)
	}

	return s.Set(ctx, key, env)
}

// LoadRecord reads the value stored under key into dst. Returns ErrNotFound
// when the key is absent and ErrVersionMismatch when the record was written
// with a different schema version.
func LoadRecord(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	var env record
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Join(ErrCorruptRecord, err)
	}
	if env.Version != SchemaVersion {
		return ErrVersionMismatch
	}

	if err := json.Unmarshal(env.Data, dst); err != nil {
		return errors.Join(ErrCorruptRecord, err)
	}
	return nil
}
