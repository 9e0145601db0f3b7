// Package repository owns the persistent, fingerprint-keyed activity
// library.
package repository

import (
	"context"
	"time"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	From      time.Time  // inclusive lower bound on activity start time
	To        time.Time  // exclusive upper bound on activity start time
	Zone      model.Zone // training-load zone
	SessionID string     // import batch
}

// Store provides read/write access to the activity library. Upserts
// are atomic with respect to concurrent readers; a reader never
// observes a half-written entry.
type Store interface {
	// Has reports whether a fingerprint is already in the library.
	Has(ctx context.Context, fingerprint string) (bool, error)

	// Get returns the entry for a fingerprint, or ErrNotFound.
	Get(ctx context.Context, fingerprint string) (*model.LibraryEntry, error)

	// Upsert inserts the entry, replacing any prior entry with the
	// same fingerprint and any prior entry at the same path. The
	// library never holds two entries for one fingerprint.
	Upsert(ctx context.Context, entry *model.LibraryEntry) error

	// Remove deletes the entry for a fingerprint; ErrNotFound if the
	// fingerprint is unknown. This is the only way an entry leaves
	// the library; removing the source file does not.
	Remove(ctx context.Context, fingerprint string) error

	// List returns entries matching the filter, newest start time
	// first.
	List(ctx context.Context, f Filter) ([]model.LibraryEntry, error)

	// Count returns the number of stored activities.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying storage.
	Close() error
}
