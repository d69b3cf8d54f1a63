// Package coordinator consumes expired sessions and runs each one, a
// single at a time, through the countdown, decision and resolution
// states, driving either the privileged overlay surface or the
// in-process fallback dialog. All queue and state mutation happens on
// one goroutine; external components only send messages.
package coordinator

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"timegate/internal/core"
)

// SessionStore is the slice of the session store the coordinator needs.
type SessionStore interface {
	InsertSession(ctx context.Context, targetAppID string, plannedMinutes int) (*core.Session, error)
	EndSession(ctx context.Context, id string, at time.Time) error
}

// Gatekeeper refreshes and reports the host permission snapshot. The
// coordinator always refreshes before an overlay attempt: host-level
// revocation can happen asynchronously and is never assumed stable.
type Gatekeeper interface {
	Refresh() core.PermissionSnapshot
}

// Surfaces is the privileged overlay surface manager.
type Surfaces interface {
	Show(ctx context.Context, req core.OverlayRequest) error
	Hide()
}

// Dialog is the non-privileged in-process fallback presenter.
type Dialog interface {
	Present(req core.OverlayRequest)
	Dismiss()
}

// Foreground controls which application holds the foreground. Both
// operations are fire-and-forget; the coordinator does not wait for
// completion confirmation.
type Foreground interface {
	BringLauncherToForeground()
	ResumeApp(appID string)
}

// Catalog resolves app IDs to display names for overlay payload text.
type Catalog interface {
	DisplayName(appID string) string
}

// Settings is read-only persisted configuration consumed by this core.
type Settings interface {
	CountdownSeconds() int
	MathChallengeEnabled() bool
	DefaultSessionMinutes() int
	ChallengeDifficulty() int
}

type actionKind int

const (
	actionSkipCountdown actionKind = iota
	actionChooseExtend
	actionChooseChallenge
	actionChooseClose
	actionSubmitAnswer
	actionCancelChallenge
)

// action is a user-input message delivered to the run loop.
type action struct {
	kind    actionKind
	minutes int // extension duration for actionChooseExtend
	answer  int // submitted answer for actionSubmitAnswer
}

// flight is the single in-flight expiry and its state-machine value.
type flight struct {
	event     core.ExpiryEvent
	state     State
	fallback  bool // once true, the privileged surface is never retried for this expiry
	remaining int  // countdown seconds left
	total     int
	challenge *core.Challenge
}

// Coordinator runs the expiry state machine.
type Coordinator struct {
	store      SessionStore
	gatekeeper Gatekeeper
	surfaces   Surfaces
	dialog     Dialog
	foreground Foreground
	catalog    Catalog
	settings   Settings
	clock      clockwork.Clock
	rng        *rand.Rand
	logger     *slog.Logger

	expiries <-chan core.ExpiryEvent
	actions  chan action
	stopChan chan struct{}

	// Owned exclusively by the run loop.
	queue    []core.ExpiryEvent
	current  *flight
	ticker   clockwork.Ticker
	tickChan <-chan time.Time
}

// Config bundles the coordinator's collaborators.
type Config struct {
	Store      SessionStore
	Gatekeeper Gatekeeper
	Surfaces   Surfaces
	Dialog     Dialog
	Foreground Foreground
	Catalog    Catalog
	Settings   Settings
	Expiries   <-chan core.ExpiryEvent
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// New creates a new expiry coordinator
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		store:      cfg.Store,
		gatekeeper: cfg.Gatekeeper,
		surfaces:   cfg.Surfaces,
		dialog:     cfg.Dialog,
		foreground: cfg.Foreground,
		catalog:    cfg.Catalog,
		settings:   cfg.Settings,
		clock:      clock,
		rng:        rand.New(rand.NewSource(clock.Now().UnixNano())),
		logger:     logger.With("component", "coordinator"),
		expiries:   cfg.Expiries,
		actions:    make(chan action, 16),
		stopChan:   make(chan struct{}),
	}
}

// Run drives the state machine until the context is cancelled or Stop
// is called (blocking).
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("expiry coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			c.logger.Info("expiry coordinator stopped (context cancelled)")
			return
		case <-c.stopChan:
			c.shutdown()
			c.logger.Info("expiry coordinator stopped")
			return
		case ev := <-c.expiries:
			c.handleExpiry(ctx, ev)
		case a := <-c.actions:
			c.handleAction(ctx, a)
		case <-c.tickChan:
			c.handleTick(ctx)
		}
	}
}

// Stop signals the run loop to exit.
func (c *Coordinator) Stop() {
	close(c.stopChan)
}

// User input. These only post messages; all processing happens on the
// run loop. Inputs arriving in the wrong state are dropped there.

// SkipCountdown forces the decision state immediately.
func (c *Coordinator) SkipCountdown() { c.actions <- action{kind: actionSkipCountdown} }

// ChooseExtend extends the expired session by the given duration.
// Non-positive minutes fall back to the configured default.
func (c *Coordinator) ChooseExtend(minutes int) {
	c.actions <- action{kind: actionChooseExtend, minutes: minutes}
}

// ChooseChallenge switches to the math challenge.
func (c *Coordinator) ChooseChallenge() { c.actions <- action{kind: actionChooseChallenge} }

// ChooseClose ends the expired session.
func (c *Coordinator) ChooseClose() { c.actions <- action{kind: actionChooseClose} }

// SubmitAnswer submits a math challenge answer.
func (c *Coordinator) SubmitAnswer(answer int) {
	c.actions <- action{kind: actionSubmitAnswer, answer: answer}
}

// CancelChallenge abandons the challenge and closes the session.
func (c *Coordinator) CancelChallenge() { c.actions <- action{kind: actionCancelChallenge} }

// handleExpiry enqueues an expiry, starting it immediately when idle.
// A session that expires while another is in-flight never interrupts
// the in-flight one; it waits its FIFO turn.
func (c *Coordinator) handleExpiry(ctx context.Context, ev core.ExpiryEvent) {
	if c.current != nil {
		c.queue = append(c.queue, ev)
		c.logger.Info("expiry queued behind in-flight one",
			"session_id", ev.SessionID,
			"queue_length", len(c.queue))
		return
	}
	c.beginFlight(ctx, ev)
}

// beginFlight starts processing one expiry. The launcher is pulled to
// the foreground first so whatever surface follows is guaranteed
// visible rather than racing the restricted app's own UI.
func (c *Coordinator) beginFlight(ctx context.Context, ev core.ExpiryEvent) {
	c.current = &flight{event: ev, state: StateIdle}
	c.logger.Info("processing expiry",
		"session_id", ev.SessionID,
		"target_app_id", ev.TargetAppID)

	c.foreground.BringLauncherToForeground()

	seconds := c.settings.CountdownSeconds()
	if seconds <= 0 {
		c.enterDecision(ctx)
		return
	}
	c.enterCountdown(ctx, seconds)
}

func (c *Coordinator) enterCountdown(ctx context.Context, seconds int) {
	f := c.current
	f.state = StateCountdown
	f.remaining = seconds
	f.total = seconds

	c.ticker = c.clock.NewTicker(time.Second)
	c.tickChan = c.ticker.Chan()

	c.present(ctx, c.countdownRequest())
}

// handleTick decrements the countdown once per second. This is the only
// recurring operation in the state machine; everything else is purely
// event-driven.
func (c *Coordinator) handleTick(ctx context.Context) {
	f := c.current
	if f == nil || f.state != StateCountdown || c.tickChan == nil {
		// A tick that arrives after the state moved on must never
		// re-issue the countdown surface.
		return
	}

	f.remaining--
	if f.remaining <= 0 {
		c.enterDecision(ctx)
		return
	}
	c.present(ctx, c.countdownRequest())
}

// stopCountdown cancels the tick source synchronously. Invoked on every
// transition out of Countdown, including the fallback path, so a stray
// tick can never fire against a torn-down surface.
func (c *Coordinator) stopCountdown() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickChan = nil
}

func (c *Coordinator) enterDecision(ctx context.Context) {
	c.stopCountdown()
	f := c.current
	f.state = StateDecision
	f.challenge = nil
	c.present(ctx, c.decisionRequest())
}

func (c *Coordinator) enterChallenge(ctx context.Context) {
	f := c.current
	f.state = StateMathChallenge
	challenge := core.NewChallenge(c.settings.ChallengeDifficulty(), c.rng)
	f.challenge = &challenge
	c.present(ctx, c.challengeRequest())
}

// handleAction applies a user input to the current state. Inputs that do
// not match the current state are ignored.
func (c *Coordinator) handleAction(ctx context.Context, a action) {
	f := c.current
	if f == nil {
		return
	}

	switch a.kind {
	case actionSkipCountdown:
		if f.state == StateCountdown {
			c.enterDecision(ctx)
		}
	case actionChooseExtend:
		if f.state == StateDecision {
			c.enterExtending(ctx, a.minutes)
		}
	case actionChooseChallenge:
		if f.state == StateDecision && c.settings.MathChallengeEnabled() {
			c.enterChallenge(ctx)
		}
	case actionChooseClose:
		if f.state == StateDecision {
			c.enterClosed(ctx)
		}
	case actionSubmitAnswer:
		if f.state != StateMathChallenge || f.challenge == nil {
			return
		}
		if f.challenge.Check(a.answer) {
			c.enterExtending(ctx, a.minutes)
			return
		}
		// Wrong answers loop back to the decision; there is no attempt
		// limit.
		c.logger.Info("incorrect challenge answer",
			"session_id", f.event.SessionID)
		c.enterDecision(ctx)
	case actionCancelChallenge:
		if f.state == StateMathChallenge {
			c.enterClosed(ctx)
		}
	}
}

// enterExtending resolves the expiry by granting a fresh session for the
// same app. The expired session is ended first: the store refuses a
// second active session per app, and the coordinator is the collaborator
// responsible for ending the prior one.
func (c *Coordinator) enterExtending(ctx context.Context, minutes int) {
	c.stopCountdown()
	f := c.current
	f.state = StateExtending

	if minutes <= 0 {
		minutes = c.settings.DefaultSessionMinutes()
	}

	if err := c.store.EndSession(ctx, f.event.SessionID, c.clock.Now()); err != nil {
		c.logger.Error("failed to end expired session",
			"session_id", f.event.SessionID, "error", err)
	}

	session, err := c.store.InsertSession(ctx, f.event.TargetAppID, minutes)
	if err != nil {
		c.logger.Error("failed to insert extension session",
			"target_app_id", f.event.TargetAppID, "error", err)
	} else {
		c.logger.Info("session extended",
			"old_session_id", f.event.SessionID,
			"new_session_id", session.ID,
			"minutes", minutes)
	}

	c.foreground.ResumeApp(f.event.TargetAppID)
	c.finishFlight(ctx)
}

// enterClosed resolves the expiry by ending the session. The restricted
// app stays backgrounded; it was pulled behind the launcher when the
// flight began.
func (c *Coordinator) enterClosed(ctx context.Context) {
	c.stopCountdown()
	f := c.current
	f.state = StateClosed

	if err := c.store.EndSession(ctx, f.event.SessionID, c.clock.Now()); err != nil {
		c.logger.Error("failed to end session",
			"session_id", f.event.SessionID, "error", err)
	}

	c.logger.Info("session closed", "session_id", f.event.SessionID)
	c.finishFlight(ctx)
}

// finishFlight runs the one unconditional cleanup step, then dequeues
// the next pending expiry or settles at idle.
func (c *Coordinator) finishFlight(ctx context.Context) {
	c.stopCountdown()

	if c.current.fallback {
		c.dialog.Dismiss()
	} else {
		c.surfaces.Hide()
	}
	c.current = nil

	if len(c.queue) == 0 {
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.beginFlight(ctx, next)
}

// present displays the request for the current state. The privileged
// path always re-checks permission first: refresh, read snapshot, then
// show, in that order. Any overlay failure switches this expiry
// permanently to the fallback dialog and re-presents the same content,
// so the user never loses the state they were in.
func (c *Coordinator) present(ctx context.Context, req core.OverlayRequest) {
	f := c.current

	if !f.fallback {
		snapshot := c.gatekeeper.Refresh()
		if !snapshot.DisplayOverApps {
			c.logger.Info("overlay permission not granted, using fallback dialog",
				"session_id", f.event.SessionID, "state", f.state)
			f.fallback = true
		} else if err := c.surfaces.Show(ctx, req); err == nil {
			return
		} else {
			c.logger.Warn("overlay surface failed, using fallback dialog",
				"session_id", f.event.SessionID, "state", f.state, "error", err)
			f.fallback = true
			c.surfaces.Hide()
		}
	}

	c.dialog.Present(req)
}

// Request builders. The request is replaced wholesale on every state
// transition; an unknown app ID degrades to the raw identifier via the
// catalog.

func (c *Coordinator) countdownRequest() core.OverlayRequest {
	f := c.current
	return core.OverlayRequest{
		Kind:    core.OverlayCountdown,
		AppID:   f.event.TargetAppID,
		AppName: c.catalog.DisplayName(f.event.TargetAppID),
		Countdown: &core.CountdownPayload{
			RemainingSeconds: f.remaining,
			TotalSeconds:     f.total,
		},
	}
}

func (c *Coordinator) decisionRequest() core.OverlayRequest {
	f := c.current
	choices := []core.DecisionChoice{core.ChoiceExtend}
	if c.settings.MathChallengeEnabled() {
		choices = append(choices, core.ChoiceChallenge)
	}
	choices = append(choices, core.ChoiceClose)

	return core.OverlayRequest{
		Kind:     core.OverlayDecision,
		AppID:    f.event.TargetAppID,
		AppName:  c.catalog.DisplayName(f.event.TargetAppID),
		Decision: &core.DecisionPayload{Choices: choices},
	}
}

func (c *Coordinator) challengeRequest() core.OverlayRequest {
	f := c.current
	return core.OverlayRequest{
		Kind:    core.OverlayMathChallenge,
		AppID:   f.event.TargetAppID,
		AppName: c.catalog.DisplayName(f.event.TargetAppID),
		Challenge: &core.ChallengePayload{
			Question:   f.challenge.Question(),
			Difficulty: c.settings.ChallengeDifficulty(),
		},
	}
}

// shutdown releases timer and display resources on loop exit.
func (c *Coordinator) shutdown() {
	c.stopCountdown()
	if c.current != nil {
		if c.current.fallback {
			c.dialog.Dismiss()
		} else {
			c.surfaces.Hide()
		}
		c.current = nil
	}
}
