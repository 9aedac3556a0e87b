// Package kv defines the durable key/value substrate the storefront keeps its
// client-side state in, and the JSON adapter layered over it.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCorrupt is returned when the backing storage cannot be decoded.
	ErrCorrupt = errors.New("storage corrupt")
)

// Well-known keys shared by every consumer of the store.
const (
	KeyCart          = "shoppingCart"
	KeySelection     = "selectedCartItems"
	KeyAuthToken     = "authToken"
	KeyCurrentUser   = "currentUser"
	KeyRedirectLogin = "redirectAfterLogin"
	KeyLastOrder     = "lastOrder"
)

// Entry represents a KV store entry with metadata.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines persistence operations for raw string values.
type Store interface {
	// Get returns an entry by key. Returns ErrKeyNotFound if not found.
	Get(ctx context.Context, key string) (Entry, error)
	// Set creates or updates an entry. A single Set is atomic.
	Set(ctx context.Context, key, value string) error
	// Delete removes an entry by key. Returns ErrKeyNotFound if not found.
	Delete(ctx context.Context, key string) error
	// List returns all entries whose key has the given prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
}
