package overlay

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timegate/internal/core"
)

// mockHost records the host calls the manager issues.
type mockHost struct {
	ops []string

	createErr  error
	confirmErr error
	elevateErr error
	contentErr error
	destroyErr error

	createCount  int
	destroyCount int
	lastFlags    SurfaceFlags
}

type mockHandle struct{ id int }

func (m *mockHost) CreateSurface(ctx context.Context, flags SurfaceFlags) (Handle, error) {
	m.ops = append(m.ops, "create")
	m.createCount++
	m.lastFlags = flags
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &mockHandle{id: m.createCount}, nil
}

func (m *mockHost) ConfirmLive(ctx context.Context, h Handle) error {
	m.ops = append(m.ops, "confirm")
	return m.confirmErr
}

func (m *mockHost) Elevate(ctx context.Context, h Handle) error {
	m.ops = append(m.ops, "elevate")
	return m.elevateErr
}

func (m *mockHost) SetContent(h Handle, req core.OverlayRequest) error {
	m.ops = append(m.ops, "content")
	return m.contentErr
}

func (m *mockHost) DestroySurface(h Handle) error {
	m.ops = append(m.ops, "destroy")
	m.destroyCount++
	return m.destroyErr
}

// mockGatekeeper reports a fixed snapshot
type mockGatekeeper struct {
	display bool
}

func (m *mockGatekeeper) Current() core.PermissionSnapshot {
	return core.PermissionSnapshot{DisplayOverApps: m.display}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func countdownRequest() core.OverlayRequest {
	return core.OverlayRequest{
		Kind:      core.OverlayCountdown,
		AppID:     "com.example.game",
		Countdown: &core.CountdownPayload{RemainingSeconds: 10, TotalSeconds: 10},
	}
}

func TestShowStagedCreationOrdering(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())

	err := m.Show(context.Background(), countdownRequest())
	require.NoError(t, err)

	// Placeholder first, confirmed live, then elevated, then content.
	assert.Equal(t, []string{"create", "confirm", "elevate", "content"}, host.ops)
	require.NotNil(t, m.CurrentlyShowing())
	assert.Equal(t, core.OverlayCountdown, m.CurrentlyShowing().Kind)
}

func TestShowLegacyHostSkipsStaging(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: true}, 24, testLogger())

	err := m.Show(context.Background(), countdownRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "content"}, host.ops)
	assert.NotZero(t, host.lastFlags&FlagSystemAlert)
}

func TestShowPermissionDenied(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: false}, 29, testLogger())

	err := m.Show(context.Background(), countdownRequest())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, host.ops, "denied show must never touch the host")
}

func TestShowReplacesContentAtomic(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())

	require.NoError(t, m.Show(context.Background(), countdownRequest()))

	decision := core.OverlayRequest{
		Kind:     core.OverlayDecision,
		AppID:    "com.example.game",
		Decision: &core.DecisionPayload{Choices: []core.DecisionChoice{core.ChoiceClose}},
	}
	require.NoError(t, m.Show(context.Background(), decision))

	assert.Equal(t, 1, host.createCount, "second show must reuse the surface, not stack a new one")
	assert.Equal(t, core.OverlayDecision, m.CurrentlyShowing().Kind)
}

func TestShowConfirmFailureIsStartRestricted(t *testing.T) {
	host := &mockHost{confirmErr: errors.New("background start throttled")}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())

	err := m.Show(context.Background(), countdownRequest())
	assert.ErrorIs(t, err, ErrStartRestricted)
	assert.Equal(t, 1, host.destroyCount, "failed placeholder must be released")
	assert.Nil(t, m.CurrentlyShowing())
}

func TestShowElevateFailureIsStartRestricted(t *testing.T) {
	host := &mockHost{elevateErr: errors.New("elevation refused")}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())

	err := m.Show(context.Background(), countdownRequest())
	assert.ErrorIs(t, err, ErrStartRestricted)
	assert.Equal(t, 1, host.destroyCount)
}

func TestUpdateFailureIsSurfaceLost(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())
	require.NoError(t, m.Show(context.Background(), countdownRequest()))

	host.contentErr = errors.New("window token invalid")
	err := m.Show(context.Background(), countdownRequest())
	assert.ErrorIs(t, err, ErrSurfaceLost)
	assert.Nil(t, m.CurrentlyShowing(), "lost surface must be released")
}

func TestHideIdempotent(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())

	// Hide with no surface is a no-op.
	m.Hide()
	assert.Zero(t, host.destroyCount)

	require.NoError(t, m.Show(context.Background(), countdownRequest()))
	m.Hide()
	m.Hide()
	assert.Equal(t, 1, host.destroyCount)
	assert.Nil(t, m.CurrentlyShowing())
}

func TestShowInvalidRequest(t *testing.T) {
	host := &mockHost{}
	m := NewManager(host, &mockGatekeeper{display: true}, 29, testLogger())

	err := m.Show(context.Background(), core.OverlayRequest{Kind: core.OverlayCountdown, AppID: "x"})
	assert.Error(t, err)
	assert.Empty(t, host.ops)
}

func TestProfileFor(t *testing.T) {
	legacy := ProfileFor(21)
	assert.NotZero(t, legacy.Flags&FlagSystemAlert)
	assert.False(t, legacy.StagedCreation)

	modern := ProfileFor(27)
	assert.NotZero(t, modern.Flags&FlagApplicationOverlay)
	assert.False(t, modern.StagedCreation)

	strict := ProfileFor(33)
	assert.NotZero(t, strict.Flags&FlagApplicationOverlay)
	assert.True(t, strict.StagedCreation)

	// Unknown future versions get the strictest profile.
	future := ProfileFor(999)
	assert.True(t, future.StagedCreation)
}
