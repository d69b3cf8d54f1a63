// Package fallback presents the blocking decision surface as ordinary
// in-process UI. It is used whenever overlay permission is absent or the
// privileged surface fails, and needs no host privilege: the coordinator
// brings the launcher itself to the foreground before ever reaching this
// presenter, so the dialog is definitionally visible.
package fallback

import (
	"log/slog"
	"sync"

	"timegate/internal/core"
)

// Renderer draws the dialog content. Implementations are plain UI with
// no staged-creation protocol and no privileged failure modes.
type Renderer interface {
	Render(req core.OverlayRequest)
	Clear()
}

// Presenter mirrors the overlay surface manager's show/hide contract for
// the non-privileged path.
type Presenter struct {
	renderer Renderer
	logger   *slog.Logger

	mu      sync.Mutex
	showing *core.OverlayRequest
}

// NewPresenter creates a fallback dialog presenter.
func NewPresenter(renderer Renderer, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		renderer: renderer,
		logger:   logger.With("component", "fallback"),
	}
}

// Present displays the request, replacing any previous content.
func (p *Presenter) Present(req core.OverlayRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.renderer.Render(req)
	p.showing = &req
	p.logger.Debug("fallback dialog presented", "kind", req.Kind, "app_id", req.AppID)
}

// Dismiss hides the dialog. Safe to call when nothing is presented.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.showing == nil {
		return
	}
	p.renderer.Clear()
	p.showing = nil
}

// CurrentlyShowing returns the presented request, or nil. For tests.
func (p *Presenter) CurrentlyShowing() *core.OverlayRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.showing == nil {
		return nil
	}
	copy := *p.showing
	return &copy
}
