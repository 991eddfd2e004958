// Package snapshot persists the store's collections to a pluggable backend
// and restores them at startup.
package snapshot

import (
	"context"
	"errors"
)

var (
	// ErrSnapshotIO reports that a backend could not be read or written.
	ErrSnapshotIO = errors.New("snapshot i/o failed")
	// ErrCorruptSnapshot reports stored data that does not decode.
	ErrCorruptSnapshot = errors.New("snapshot is corrupt")
)

// Collection names, one persisted document each.
const (
	Events         = "events"
	Maps           = "maps"
	Routes         = "routes"
	Configurations = "configurations"
	Scores         = "scores"
)

// Backend puts and fetches named snapshot documents.
// Load reports found=false with a nil error when name was never saved.
type Backend interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) (data []byte, found bool, err error)
}

// Closer is implemented by backends that hold connections.
type Closer interface {
	Close() error
}
