package core

import (
	"errors"
	"fmt"
	"time"
)

// Session represents a time-boxed grant to use one restricted application.
type Session struct {
	ID             string
	TargetAppID    string
	PlannedMinutes int // planned duration in minutes
	StartTime      time.Time
	EndTime        *time.Time // set when the session is ended
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validation and lookup errors
var (
	ErrInvalidAppID    = errors.New("target app ID cannot be empty")
	ErrInvalidDuration = errors.New("planned duration must be positive")
	ErrSessionConflict = errors.New("an active session already exists for this app")
	ErrSessionNotFound = errors.New("session not found")
)

// Validate validates a Session
func (s *Session) Validate() error {
	if s.TargetAppID == "" {
		return ErrInvalidAppID
	}
	if s.PlannedMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Deadline returns the moment the session's planned duration elapses.
// This is the authoritative calculation based on StartTime + PlannedMinutes;
// it never depends on in-memory timer state, so it survives restarts.
func (s *Session) Deadline() time.Time {
	return s.StartTime.Add(time.Duration(s.PlannedMinutes) * time.Minute)
}

// ExpiredAt reports whether the session's planned duration has elapsed at t.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.Deadline())
}

// ExpiryEvent is produced when a session's planned duration elapses.
// It is ephemeral and consumed exactly once by the expiry coordinator.
type ExpiryEvent struct {
	SessionID      string
	TargetAppID    string
	PlannedMinutes int
}

// OverlayKind identifies what content the overlay surface should display.
type OverlayKind string

const (
	OverlayCountdown     OverlayKind = "countdown"
	OverlayDecision      OverlayKind = "decision"
	OverlayMathChallenge OverlayKind = "math_challenge"
)

// DecisionChoice is one of the options offered in the decision state.
type DecisionChoice string

const (
	ChoiceExtend    DecisionChoice = "extend"
	ChoiceChallenge DecisionChoice = "challenge"
	ChoiceClose     DecisionChoice = "close"
)

// OverlayRequest describes what the overlay surface (or the fallback
// dialog) should currently display. It is replaced wholesale on every
// state transition; only the payload matching Kind is set.
type OverlayRequest struct {
	Kind      OverlayKind
	AppID     string
	AppName   string // display name resolved via the app catalog
	Countdown *CountdownPayload
	Decision  *DecisionPayload
	Challenge *ChallengePayload
}

// CountdownPayload carries the countdown state for OverlayCountdown.
type CountdownPayload struct {
	RemainingSeconds int
	TotalSeconds     int
}

// DecisionPayload carries the available choices for OverlayDecision.
type DecisionPayload struct {
	Choices []DecisionChoice
}

// ChallengePayload carries the arithmetic problem for OverlayMathChallenge.
type ChallengePayload struct {
	Question   string
	Difficulty int
}

// Validate checks that the request payload matches its kind.
func (r *OverlayRequest) Validate() error {
	if r.AppID == "" {
		return ErrInvalidAppID
	}
	switch r.Kind {
	case OverlayCountdown:
		if r.Countdown == nil {
			return fmt.Errorf("countdown request missing payload")
		}
	case OverlayDecision:
		if r.Decision == nil || len(r.Decision.Choices) == 0 {
			return fmt.Errorf("decision request missing choices")
		}
	case OverlayMathChallenge:
		if r.Challenge == nil {
			return fmt.Errorf("challenge request missing payload")
		}
	default:
		return fmt.Errorf("unknown overlay kind %q", r.Kind)
	}
	return nil
}

// PermissionSnapshot is an immutable view of the host's privilege grants.
// Grants can be revoked out-of-band at any time, so a snapshot must be
// re-read (Gatekeeper.Refresh) right before every overlay attempt.
type PermissionSnapshot struct {
	DisplayOverApps bool
	Notifications   bool
	TakenAt         time.Time
}
