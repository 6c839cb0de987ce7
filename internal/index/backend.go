// Package index implements the Index Gateway (C1): a uniform PUT/GET/DEL/NEXT
// interface over named, ordered key-value indices, with name-to-ID hashing
// and directory-pseudo-entry collapsing layered on top of a raw Backend.
package index

import (
	"context"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

// Entry is one (key, value) pair returned by Next.
type Entry struct {
	Key   []byte
	Value []byte
}

// Backend is the raw ordered key-value primitive an index service exposes:
// PUT/GET/DEL plus prefix-ordered enumeration, scoped by a 128-bit index ID.
// Implementations need not understand index names, prefixes, or delimiters —
// that translation lives in Gateway.
type Backend interface {
	// Put writes value at key within the index named by id. If overwrite is
	// false and key already exists, Put returns errors.AlreadyExists.
	Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error

	// Get returns the value at key, or errors.NotFound if absent.
	Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error)

	// Del removes key, or returns errors.NotFound if it was absent.
	Del(ctx context.Context, id idgen.ID, key []byte) error

	// Next returns up to max entries with key >= cursor, in ascending key
	// order. An empty cursor starts at the beginning of the index.
	Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error)

	// HealthCheck verifies the backend is reachable and operational.
	HealthCheck(ctx context.Context) error
}
