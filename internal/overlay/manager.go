// Package overlay owns the privileged drawing surface placed on top of
// other processes' windows. It implements the staged-creation protocol
// required by stricter host versions and maps host failures into the
// overlay error taxonomy.
package overlay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"timegate/internal/core"
)

// DefaultConfirmTimeout bounds the wait for the host to acknowledge a
// placeholder surface as live. Expiry of this wait is treated as the
// host refusing elevation.
const DefaultConfirmTimeout = 5 * time.Second

// Handle is an opaque host-owned surface reference.
type Handle any

// Host is the host OS display boundary. No component outside this
// package and the permission gatekeeper may touch host privilege APIs.
type Host interface {
	// CreateSurface creates a surface with the given flags. A staged
	// placeholder is created with zero content; the full content is
	// swapped in via SetContent.
	CreateSurface(ctx context.Context, flags SurfaceFlags) (Handle, error)

	// ConfirmLive blocks until the host reports the surface visible, or
	// the context expires.
	ConfirmLive(ctx context.Context, h Handle) error

	// Elevate requests privileged display for an existing surface.
	Elevate(ctx context.Context, h Handle) error

	// SetContent renders the request onto the surface.
	SetContent(h Handle, req core.OverlayRequest) error

	// DestroySurface releases the surface and all host-level resources.
	DestroySurface(h Handle) error
}

// Gatekeeper is the permission view the manager consults on every show.
type Gatekeeper interface {
	Current() core.PermissionSnapshot
}

// Manager owns at most one live surface at a time. Show on an existing
// surface atomically replaces its content rather than stacking surfaces.
type Manager struct {
	host           Host
	gatekeeper     Gatekeeper
	profile        Profile
	confirmTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	handle  Handle
	showing *core.OverlayRequest
}

// NewManager creates a surface manager for the given host version. The
// flag set and staged-creation requirement are resolved once here.
func NewManager(host Host, gatekeeper Gatekeeper, hostVersion int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	profile := ProfileFor(hostVersion)
	logger = logger.With("component", "overlay")
	logger.Info("overlay manager initialized",
		"host_version", hostVersion,
		"staged_creation", profile.StagedCreation)

	return &Manager{
		host:           host,
		gatekeeper:     gatekeeper,
		profile:        profile,
		confirmTimeout: DefaultConfirmTimeout,
		logger:         logger,
	}
}

// Show attempts to create or update the privileged surface. The caller
// is expected to have refreshed the permission snapshot immediately
// before calling.
func (m *Manager) Show(ctx context.Context, req core.OverlayRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.gatekeeper.Current().DisplayOverApps {
		return permissionDenied()
	}

	if m.handle != nil {
		// Replace content on the existing surface.
		if err := m.host.SetContent(m.handle, req); err != nil {
			m.logger.Warn("surface lost while updating content", "kind", req.Kind, "error", err)
			m.destroyLocked()
			return surfaceLost(err)
		}
		m.showing = &req
		return nil
	}

	handle, err := m.createLocked(ctx)
	if err != nil {
		return err
	}

	if err := m.host.SetContent(handle, req); err != nil {
		m.host.DestroySurface(handle)
		return surfaceLost(err)
	}

	m.handle = handle
	m.showing = &req
	m.logger.Debug("surface shown", "kind", req.Kind, "app_id", req.AppID)
	return nil
}

// createLocked runs the creation protocol for the resolved profile.
// Staged creation: minimal placeholder first, confirm it is live, then
// elevate, then the caller swaps in the full content.
func (m *Manager) createLocked(ctx context.Context) (Handle, error) {
	handle, err := m.host.CreateSurface(ctx, m.profile.Flags)
	if err != nil {
		return nil, startRestricted(err)
	}

	if !m.profile.StagedCreation {
		return handle, nil
	}

	confirmCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()

	if err := m.host.ConfirmLive(confirmCtx, handle); err != nil {
		m.host.DestroySurface(handle)
		return nil, startRestricted(err)
	}

	if err := m.host.Elevate(ctx, handle); err != nil {
		m.host.DestroySurface(handle)
		return nil, startRestricted(err)
	}

	return handle, nil
}

// Hide tears down the surface. Safe to call when no surface exists.
func (m *Manager) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyLocked()
}

func (m *Manager) destroyLocked() {
	if m.handle == nil {
		return
	}
	if err := m.host.DestroySurface(m.handle); err != nil {
		// The surface may already be gone; releasing our reference is
		// all that is required on this path.
		m.logger.Warn("failed to destroy surface", "error", err)
	}
	m.handle = nil
	m.showing = nil
}

// CurrentlyShowing returns the request on the live surface, or nil when
// no surface exists. For diagnostics and tests.
func (m *Manager) CurrentlyShowing() *core.OverlayRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.showing == nil {
		return nil
	}
	copy := *m.showing
	return &copy
}
