package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkrupp/storefront/internal/infra/logging"
)

// ErrCorrupt marks a stored document that could not be decoded.
var ErrCorrupt = errors.New("corrupt document")

// Result is the outcome of a typed read. A read never fails: on any fault Value
// holds the fallback and Err records what went wrong.
type Result[T any] struct {
	Value T
	Found bool  // a decodable document was stored under the key
	Err   error // storage or decoding fault, nil for clean reads
}

// Degraded reports whether Value is a fallback substituted for a failed read.
func (r Result[T]) Degraded() bool {
	return r.Err != nil
}

// Fault returns Err when the store itself failed to answer. A corrupt document
// is not a fault: Value then reads as the fallback and a later write replaces
// the document. Read-modify-write callers must stop on a fault, since writing
// a document derived from the fallback would overwrite data they never saw.
func (r Result[T]) Fault() error {
	if r.Err == nil || errors.Is(r.Err, ErrCorrupt) {
		return nil
	}

	return r.Err
}

// Adapter stores JSON-encoded values in a Store and swallows its faults.
type Adapter struct {
	store Store
	log   logging.Logger
}

// NewAdapter creates a new Adapter over the given store.
func NewAdapter(store Store) *Adapter {
	return &Adapter{
		store: store,
		log:   logging.GetLogger("repo.kv.adapter"),
	}
}

// Load decodes the document stored under key into a T.
// Absent keys yield the fallback with Found unset.
func Load[T any](ctx context.Context, a *Adapter, key string, fallback T) Result[T] {
	data, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.WarnContext(ctx, "read degraded", "key", key, "error", err)

		return Result[T]{Value: fallback, Err: fmt.Errorf("get %s: %w", key, err)}
	}

	if !ok {
		return Result[T]{Value: fallback}
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		a.log.WarnContext(ctx, "read degraded", "key", key, "error", err)

		return Result[T]{Value: fallback, Err: fmt.Errorf("decode %s: %w", key, errors.Join(ErrCorrupt, err))}
	}

	return Result[T]{Value: value, Found: true}
}

// Set encodes value and stores it under key. Faults are logged and reported as false.
func (a *Adapter) Set(ctx context.Context, key string, value any) bool {
	data, err := json.Marshal(value)
	if err == nil {
		err = a.store.Set(ctx, key, data)
	}

	if err != nil {
		a.log.WarnContext(ctx, "write dropped", "key", key, "error", err)

		return false
	}

	a.log.DebugContext(ctx, "write", "key", key, "size", len(data))

	return true
}

// Remove deletes key. Faults are logged and reported as false.
func (a *Adapter) Remove(ctx context.Context, key string) bool {
	if err := a.store.Remove(ctx, key); err != nil {
		a.log.WarnContext(ctx, "remove dropped", "key", key, "error", err)

		return false
	}

	return true
}

// Close closes the underlying store.
func (a *Adapter) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}
