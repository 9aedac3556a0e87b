package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// CorruptFunc is called when a persisted value had to be discarded.
type CorruptFunc func(key string, err error)

// Adapter reads and writes JSON values through a Store. Absent or malformed
// data degrades to the zero value and is reported through the logger and the
// optional corruption hook. A failing store is only hidden by the Read*
// helpers; LoadList returns the failure.
type Adapter struct {
	store     Store
	log       zerolog.Logger
	onCorrupt []CorruptFunc
}

// NewAdapter creates an Adapter over store.
func NewAdapter(store Store, log zerolog.Logger) *Adapter {
	return &Adapter{store: store, log: log}
}

// OnCorrupt registers fn to be called whenever malformed data is discarded.
// Hooks must be registered before the adapter is shared.
func (a *Adapter) OnCorrupt(fn CorruptFunc) {
	a.onCorrupt = append(a.onCorrupt, fn)
}

// Store returns the underlying KV store.
func (a *Adapter) Store() Store {
	return a.store
}

// ReadList returns the list stored under key. The boolean reports whether
// the key held any data at all, malformed or not, so callers can tell
// "never written" apart from "written empty". A store that fails to read is
// logged and treated as absent; use LoadList when that must not be hidden.
func ReadList[T any](ctx context.Context, a *Adapter, key string) ([]T, bool) {
	out, found, err := LoadList[T](ctx, a, key)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("read failed, treating as empty")
		return []T{}, false
	}
	return out, found
}

// LoadList is ReadList for callers that write back what they read. Absent
// and malformed data still degrade to an empty list, but any other store
// failure is returned.
func LoadList[T any](ctx context.Context, a *Adapter, key string) ([]T, bool, error) {
	raw, st, err := a.readRaw(ctx, key)
	switch st {
	case rawFailed:
		return nil, false, err
	case rawAbsent:
		return []T{}, false, nil
	case rawCorrupt:
		return []T{}, true, nil
	}

	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		a.corrupt(key, err)
		return []T{}, true, nil
	}
	if out == nil {
		out = []T{}
	}
	return out, true, nil
}

// WriteList stores values under key as a JSON array.
func WriteList[T any](ctx context.Context, a *Adapter, key string, values []T) error {
	if values == nil {
		values = []T{}
	}
	return a.WriteValue(ctx, key, values)
}

// ReadValue decodes the JSON object stored under key into dst. It reports
// false when the key is absent or its value could not be decoded.
func (a *Adapter) ReadValue(ctx context.Context, key string, dst any) bool {
	raw, st, err := a.readRaw(ctx, key)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("read failed")
	}
	if st != rawPresent {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		a.corrupt(key, err)
		return false
	}
	return true
}

// WriteValue stores v under key as JSON.
func (a *Adapter) WriteValue(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return a.WriteString(ctx, key, string(data))
}

// ReadString returns the raw string stored under key.
func (a *Adapter) ReadString(ctx context.Context, key string) (string, bool) {
	raw, st, err := a.readRaw(ctx, key)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("read failed")
	}
	return raw, st == rawPresent
}

// WriteString stores value under key verbatim.
func (a *Adapter) WriteString(ctx context.Context, key, value string) error {
	if err := a.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	err := a.store.Delete(ctx, key)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

type rawState int

const (
	rawAbsent rawState = iota
	rawPresent
	rawCorrupt
	rawFailed
)

func (a *Adapter) readRaw(ctx context.Context, key string) (string, rawState, error) {
	entry, err := a.store.Get(ctx, key)
	switch {
	case err == nil:
		return entry.Value, rawPresent, nil
	case errors.Is(err, ErrKeyNotFound):
		return "", rawAbsent, nil
	case errors.Is(err, ErrCorrupt):
		a.corrupt(key, err)
		return "", rawCorrupt, nil
	default:
		return "", rawFailed, fmt.Errorf("read %s: %w", key, err)
	}
}

func (a *Adapter) corrupt(key string, err error) {
	a.log.Warn().Err(err).Str("key", key).Msg("discarding malformed persisted data")
	for _, fn := range a.onCorrupt {
		fn(key, err)
	}
}
