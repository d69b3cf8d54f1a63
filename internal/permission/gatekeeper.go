// Package permission tracks the host's privilege grants for the overlay
// subsystem. Together with the overlay surface manager it is the only
// code allowed to cross the host privilege boundary.
package permission

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"timegate/internal/core"
)

// Host is the host OS privilege boundary. Reads must be cheap and local;
// they never involve a network or user-interaction round trip.
type Host interface {
	// CanDrawOverApps reports whether the process may draw on top of
	// other applications' windows.
	CanDrawOverApps() (bool, error)

	// CanPostNotifications reports whether the process may post
	// notifications.
	CanPostNotifications() (bool, error)
}

// Gatekeeper caches the host's privilege grants as a single consistent
// snapshot. Grants can be revoked out-of-band while the process is
// backgrounded, so callers must Refresh right before any overlay attempt.
type Gatekeeper struct {
	host   Host
	clock  clockwork.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot core.PermissionSnapshot
}

// NewGatekeeper creates a gatekeeper and takes an initial snapshot.
func NewGatekeeper(host Host, clock clockwork.Clock, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gatekeeper{
		host:   host,
		clock:  clock,
		logger: logger.With("component", "gatekeeper"),
	}
	g.Refresh()
	return g
}

// Current returns the cached snapshot. It never blocks on the host.
func (g *Gatekeeper) Current() core.PermissionSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// Refresh forces a re-read of the host grants. Permission is binary and
// instantaneous: any failure to read a grant is treated as "not granted"
// (fail-closed), with no retries and no backoff.
func (g *Gatekeeper) Refresh() core.PermissionSnapshot {
	display, err := g.host.CanDrawOverApps()
	if err != nil {
		g.logger.Warn("failed to read display-over-apps grant, treating as denied", "error", err)
		display = false
	}

	notifications, err := g.host.CanPostNotifications()
	if err != nil {
		g.logger.Warn("failed to read notification grant, treating as denied", "error", err)
		notifications = false
	}

	snapshot := core.PermissionSnapshot{
		DisplayOverApps: display,
		Notifications:   notifications,
		TakenAt:         g.clock.Now(),
	}

	g.mu.Lock()
	g.snapshot = snapshot
	g.mu.Unlock()

	g.logger.Debug("permission snapshot refreshed",
		"display_over_apps", snapshot.DisplayOverApps,
		"notifications", snapshot.Notifications)

	return snapshot
}
