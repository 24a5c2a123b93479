// Package registry stores the named locations each chat user has saved.
package registry

import (
	"context"
	"errors"

	"github.com/i474232898/weather-bot/internal/geo"
)

var (
	// ErrNotFound is returned by Get when the user has no location with that name.
	ErrNotFound = errors.New("location not found")

	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	// Callers surface it to the user; the registry never retries internally.
	ErrStorageUnavailable = errors.New("location storage unavailable")
)

// Registry is the contract the in-memory and SQL-backed stores satisfy.
// Implementations must be safe for concurrent use by many conversations.
type Registry interface {
	// Keys returns the names of the user's saved locations in no particular
	// order. A user with nothing saved gets an empty result, not an error.
	Keys(ctx context.Context, userID int64) ([]string, error)

	// Add saves loc under name, replacing any location already stored there.
	Add(ctx context.Context, userID int64, name string, loc geo.Location) error

	// Get returns the location saved under name or ErrNotFound.
	Get(ctx context.Context, userID int64, name string) (geo.Location, error)

	// Delete removes the named location. Deleting a missing name is a no-op.
	Delete(ctx context.Context, userID int64, name string) error
}
