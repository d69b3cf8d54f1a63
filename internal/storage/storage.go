package storage

import (
	"context"
	"time"

	"timegate/internal/core"
)

// Storage defines the interface for session persistence
type Storage interface {
	// InsertSession creates a new active session for the target app.
	// Returns core.ErrSessionConflict if an active session already
	// exists for the app; callers are expected to end the prior
	// session first.
	InsertSession(ctx context.Context, targetAppID string, plannedMinutes int) (*core.Session, error)

	// EndSession marks a session inactive at the given time. Ending an
	// already-ended session is a no-op, not an error.
	EndSession(ctx context.Context, id string, at time.Time) error

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// ListActiveSessions retrieves all active sessions
	ListActiveSessions(ctx context.Context) ([]*core.Session, error)

	// Lifecycle
	Close() error
}
