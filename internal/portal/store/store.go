package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite,
// redis) implement this and expose sub-repositories to keep concerns tidy.
type Store interface {
	Sessions() Sessions
	PendingLogins() PendingLogins

	// ApplyMigrations brings the backing schema up to date. Drivers without a
	// schema treat it as a no-op.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is still reachable.
	Ping(ctx context.Context) error
}

type Sessions interface {
	// Create stores a new session. ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, s domain.Session) error

	// Get returns a live session. Expired sessions are reported as ErrNotFound.
	Get(ctx context.Context, id string) (domain.Session, error)

	// Delete removes one session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// Clear removes every session.
	Clear(ctx context.Context) error

	// DeleteExpired removes sessions whose expiry has passed and reports how many.
	DeleteExpired(ctx context.Context) (int, error)

	// Count returns the number of stored sessions, expired ones included
	// until they are swept.
	Count(ctx context.Context) (int, error)
}

type PendingLogins interface {
	// Save stores a pending login keyed by its state.
	Save(ctx context.Context, p domain.PendingLogin) error

	// Take atomically fetches and removes a pending login. Expired or absent
	// entries are reported as ErrNotFound. A state can be taken at most once.
	Take(ctx context.Context, state string) (domain.PendingLogin, error)

	// DeleteExpired removes pending logins past their expiry.
	DeleteExpired(ctx context.Context) (int, error)
}
