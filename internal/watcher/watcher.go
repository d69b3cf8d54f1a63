// Package watcher turns persisted sessions into expiry events. It scans
// the store on a fixed tick, computing every deadline from the persisted
// start time and planned duration, so it survives process restarts
// without losing or duplicating an expiry: a session stays active until
// the coordinator resolves it, and an unresolved expiry simply
// resurfaces on the next run.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"timegate/internal/core"
)

// DefaultInterval is how often the watcher scans for passed deadlines.
const DefaultInterval = time.Second

// Storage interface for watcher operations
type Storage interface {
	ListActiveSessions(ctx context.Context) ([]*core.Session, error)
}

// Watcher emits exactly one ExpiryEvent per active session whose
// deadline has passed, per process run.
type Watcher struct {
	storage  Storage
	clock    clockwork.Clock
	interval time.Duration
	events   chan core.ExpiryEvent
	stopChan chan struct{}
	logger   *slog.Logger

	// notified tracks sessions already emitted this run. Dedupe is
	// in-memory on purpose: after a crash mid-resolution the session is
	// still active and must be re-emitted, not silently dropped.
	notified map[string]struct{}
}

// New creates a new expiry watcher
func New(storage Storage, clock clockwork.Clock, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		storage:  storage,
		clock:    clock,
		interval: interval,
		events:   make(chan core.ExpiryEvent, 16),
		stopChan: make(chan struct{}),
		logger:   logger.With("component", "watcher"),
		notified: make(map[string]struct{}),
	}
}

// Events returns the channel on which expiry events are delivered.
func (w *Watcher) Events() <-chan core.ExpiryEvent {
	return w.events
}

// Start begins the watch loop (blocking)
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("expiry watcher started", "interval", w.interval)
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	// Catch sessions that expired while the process was down.
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry watcher stopped (context cancelled)")
			return
		case <-w.stopChan:
			w.logger.Info("expiry watcher stopped")
			return
		case <-ticker.Chan():
			w.tick(ctx)
		}
	}
}

// Stop stops the watch loop
func (w *Watcher) Stop() {
	close(w.stopChan)
}

// tick performs one scan for passed deadlines
func (w *Watcher) tick(ctx context.Context) {
	sessions, err := w.storage.ListActiveSessions(ctx)
	if err != nil {
		w.logger.Error("failed to list active sessions", "error", err)
		return
	}

	now := w.clock.Now()

	// Forget sessions that are no longer active so the dedupe map does
	// not grow without bound.
	live := make(map[string]struct{}, len(sessions))
	for _, session := range sessions {
		live[session.ID] = struct{}{}
	}
	for id := range w.notified {
		if _, ok := live[id]; !ok {
			delete(w.notified, id)
		}
	}

	for _, session := range sessions {
		if !session.ExpiredAt(now) {
			continue
		}
		if _, done := w.notified[session.ID]; done {
			continue
		}

		w.notified[session.ID] = struct{}{}
		w.logger.Info("session expired",
			"session_id", session.ID,
			"target_app_id", session.TargetAppID,
			"deadline", session.Deadline())

		select {
		case w.events <- core.ExpiryEvent{
			SessionID:      session.ID,
			TargetAppID:    session.TargetAppID,
			PlannedMinutes: session.PlannedMinutes,
		}:
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		}
	}
}
