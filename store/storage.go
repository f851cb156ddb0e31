// Package store persists save slots behind a small storage interface, with
// Redis and in-memory implementations.
package store

import (
	"context"
)

// HealthChecker defines basic health check capabilities.
type HealthChecker interface {
	// Ping tests the service connection.
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities.
type Closer interface {
	// Close closes the service connection.
	Close() error
}

// Storage defines the interface for save-slot persistence. Values are the
// JSON save payloads produced by the save package.
type Storage interface {
	HealthChecker
	Closer

	// PutSave stores a save payload under the given slot name.
	PutSave(ctx context.Context, slot string, data []byte) error

	// GetSave retrieves a save payload by slot name.
	// Returns nil if the slot doesn't exist.
	GetSave(ctx context.Context, slot string) ([]byte, error)

	// DeleteSave removes a slot.
	DeleteSave(ctx context.Context, slot string) error

	// ListSaves returns the existing slot names, sorted.
	ListSaves(ctx context.Context) ([]string, error)
}
