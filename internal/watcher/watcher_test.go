package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timegate/internal/core"
)

// mockStorage is a map-backed session store.
type mockStorage struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

func newMockStorage() *mockStorage {
	return &mockStorage{sessions: make(map[string]*core.Session)}
}

func (m *mockStorage) ListActiveSessions(_ context.Context) ([]*core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []*core.Session
	for _, s := range m.sessions {
		if s.Active {
			copied := *s
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (m *mockStorage) add(s *core.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *mockStorage) end(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Active = false
	}
}

func session(id, appID string, start time.Time, minutes int) *core.Session {
	return &core.Session{
		ID:             id,
		TargetAppID:    appID,
		PlannedMinutes: minutes,
		StartTime:      start,
		Active:         true,
	}
}

func drain(events <-chan core.ExpiryEvent) []core.ExpiryEvent {
	var out []core.ExpiryEvent
	for {
		select {
		case e := <-events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestTickEmitsExpiredSessions(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	storage := newMockStorage()
	storage.add(session("sess_1", "com.example.game", start, 30))
	storage.add(session("sess_2", "com.example.video", start, 60))

	w := New(storage, clock, 0, nil)
	ctx := context.Background()

	// Before any deadline: nothing.
	w.tick(ctx)
	assert.Empty(t, drain(w.Events()))

	// Past the first deadline but not the second.
	clock.Advance(31 * time.Minute)
	w.tick(ctx)

	events := drain(w.Events())
	require.Len(t, events, 1)
	assert.Equal(t, "sess_1", events[0].SessionID)
	assert.Equal(t, "com.example.game", events[0].TargetAppID)
	assert.Equal(t, 30, events[0].PlannedMinutes)
}

func TestTickEmitsOnlyOncePerRun(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	storage := newMockStorage()
	storage.add(session("sess_1", "com.example.game", start, 5))

	w := New(storage, clock, 0, nil)
	ctx := context.Background()

	clock.Advance(6 * time.Minute)
	w.tick(ctx)
	require.Len(t, drain(w.Events()), 1)

	// The session is still active (unresolved), but within the same run
	// it must not be emitted again.
	w.tick(ctx)
	w.tick(ctx)
	assert.Empty(t, drain(w.Events()))
}

func TestRestartReemitsUnresolvedExpiry(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	storage := newMockStorage()
	storage.add(session("sess_1", "com.example.game", start, 5))
	ctx := context.Background()

	clock.Advance(6 * time.Minute)

	first := New(storage, clock, 0, nil)
	first.tick(ctx)
	require.Len(t, drain(first.Events()), 1)

	// A crash mid-resolution leaves the session active. A fresh watcher
	// over the same store must surface the expiry again.
	second := New(storage, clock, 0, nil)
	second.tick(ctx)
	events := drain(second.Events())
	require.Len(t, events, 1)
	assert.Equal(t, "sess_1", events[0].SessionID)
}

func TestRestartBeforeDeadlineEmitsExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	storage := newMockStorage()
	storage.add(session("sess_1", "com.example.game", start, 15))
	ctx := context.Background()

	// First run ends before the deadline: nothing emitted.
	first := New(storage, clock, 0, nil)
	clock.Advance(5 * time.Minute)
	first.tick(ctx)
	require.Empty(t, drain(first.Events()))

	// The replacement process picks the deadline up from the persisted
	// start time and emits exactly one event.
	second := New(storage, clock, 0, nil)
	clock.Advance(11 * time.Minute)
	second.tick(ctx)
	second.tick(ctx)
	events := drain(second.Events())
	require.Len(t, events, 1)
	assert.Equal(t, "sess_1", events[0].SessionID)
}

func TestResolvedSessionNotReemitted(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	storage := newMockStorage()
	storage.add(session("sess_1", "com.example.game", start, 5))

	w := New(storage, clock, 0, nil)
	ctx := context.Background()

	clock.Advance(6 * time.Minute)
	w.tick(ctx)
	require.Len(t, drain(w.Events()), 1)

	storage.end("sess_1")
	w.tick(ctx)
	assert.Empty(t, drain(w.Events()))

	// Ending the session also prunes the dedupe map.
	assert.Empty(t, w.notified)
}

func TestStartScansImmediately(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start.Add(10 * time.Minute))
	storage := newMockStorage()
	// Expired while the process was down.
	storage.add(session("sess_1", "com.example.game", start, 5))

	w := New(storage, clock, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case event := <-w.Events():
		assert.Equal(t, "sess_1", event.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an expiry event from the initial scan")
	}

	w.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
