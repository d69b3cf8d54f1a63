// Package host provides the local host-boundary implementation used by
// the daemon: permission reads answered from configuration, surface and
// dialog operations that log instead of drawing, and a fire-and-forget
// foreground controller. The actual privileged display work is handled
// by the platform shell this process is embedded in; this implementation
// mirrors its contract so the subsystem runs end-to-end anywhere.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"timegate/internal/core"
	"timegate/internal/overlay"
)

// Grants is the configured permission state the local host reports.
type Grants struct {
	DisplayOverApps bool
	Notifications   bool
}

// Local implements the permission, overlay, dialog and foreground host
// boundaries against configuration and logs.
type Local struct {
	logger *slog.Logger

	mu     sync.RWMutex
	grants Grants

	nextHandle atomic.Int64
}

// NewLocal creates a local host reporting the given grants.
func NewLocal(grants Grants, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		logger: logger.With("component", "host"),
		grants: grants,
	}
}

// SetGrants replaces the reported grants (simulates out-of-band
// revocation from host settings).
func (h *Local) SetGrants(grants Grants) {
	h.mu.Lock()
	h.grants = grants
	h.mu.Unlock()
}

// Permission boundary

func (h *Local) CanDrawOverApps() (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.grants.DisplayOverApps, nil
}

func (h *Local) CanPostNotifications() (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.grants.Notifications, nil
}

// Overlay surface boundary

type localSurface struct {
	id int64
}

func (h *Local) CreateSurface(ctx context.Context, flags overlay.SurfaceFlags) (overlay.Handle, error) {
	surface := &localSurface{id: h.nextHandle.Add(1)}
	h.logger.Info("surface created", "surface_id", surface.id, "flags", flags)
	return surface, nil
}

func (h *Local) ConfirmLive(ctx context.Context, handle overlay.Handle) error {
	// The local surface is live the moment it exists.
	return ctx.Err()
}

func (h *Local) Elevate(ctx context.Context, handle overlay.Handle) error {
	surface, err := h.surface(handle)
	if err != nil {
		return err
	}
	h.logger.Info("surface elevated", "surface_id", surface.id)
	return nil
}

func (h *Local) SetContent(handle overlay.Handle, req core.OverlayRequest) error {
	surface, err := h.surface(handle)
	if err != nil {
		return err
	}
	h.logger.Info("surface content set",
		"surface_id", surface.id,
		"kind", req.Kind,
		"app", req.AppName)
	return nil
}

func (h *Local) DestroySurface(handle overlay.Handle) error {
	surface, err := h.surface(handle)
	if err != nil {
		return err
	}
	h.logger.Info("surface destroyed", "surface_id", surface.id)
	return nil
}

func (h *Local) surface(handle overlay.Handle) (*localSurface, error) {
	surface, ok := handle.(*localSurface)
	if !ok {
		return nil, errors.New("not a local surface handle")
	}
	return surface, nil
}

// Fallback dialog boundary

func (h *Local) Render(req core.OverlayRequest) {
	h.logger.Info("dialog rendered", "kind", req.Kind, "app", req.AppName)
}

func (h *Local) Clear() {
	h.logger.Info("dialog cleared")
}

// Foreground control boundary. Both calls are best-effort.

func (h *Local) BringLauncherToForeground() {
	h.logger.Info("launcher brought to foreground")
}

func (h *Local) ResumeApp(appID string) {
	h.logger.Info("app resumed", "app_id", appID)
}
