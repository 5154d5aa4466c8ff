package kv

import (
	"context"
	"errors"
)

// ErrUnknownDriver is returned by Open for an unsupported StoreConfig.Driver.
var ErrUnknownDriver = errors.New("unknown store driver")

// Store defines the interface for string-keyed persistence of raw JSON documents.
type Store interface {
	// Get returns the document stored under key.
	// Returns false without error if the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set replaces the document stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
// Returns an error if initialization fails.
type StoreFactory func(ctx context.Context) (Store, error)
