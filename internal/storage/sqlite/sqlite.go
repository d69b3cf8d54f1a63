package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-sqlite3"

	"timegate/internal/core"
	"timegate/internal/idgen"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db    *sql.DB
	clock clockwork.Clock
}

// New creates a new SQLite storage instance
func New(dbPath string, clock clockwork.Clock) (*SQLiteStorage, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialize writers; the watcher and coordinator share this handle.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:    db,
		clock: clock,
	}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			target_app_id TEXT NOT NULL,
			planned_minutes INTEGER NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(active);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active_per_app
			ON sessions(target_app_id) WHERE active = 1;
	`

	_, err := s.db.Exec(schema)
	return err
}

// InsertSession creates a new active session for the target app.
func (s *SQLiteStorage) InsertSession(ctx context.Context, targetAppID string, plannedMinutes int) (*core.Session, error) {
	now := s.clock.Now().UTC()
	session := &core.Session{
		ID:             idgen.NewSession(),
		TargetAppID:    targetAppID,
		PlannedMinutes: plannedMinutes,
		StartTime:      now,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, target_app_id, planned_minutes, start_time, end_time, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, 1, ?, ?)
	`, session.ID, session.TargetAppID, session.PlannedMinutes, session.StartTime, session.CreatedAt, session.UpdatedAt)

	if err != nil {
		// The partial unique index enforces at most one active session
		// per app even under concurrent inserts.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, core.ErrSessionConflict
		}
		return nil, err
	}

	return session, nil
}

// EndSession marks a session inactive. Idempotent: ending an already
// ended session changes nothing and returns no error.
func (s *SQLiteStorage) EndSession(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET active = 0, end_time = ?, updated_at = ?
		WHERE id = ? AND active = 1
	`, at.UTC(), s.clock.Now().UTC(), id)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// Nothing updated: either the session was already ended (no-op) or
	// it never existed.
	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return core.ErrSessionNotFound
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_app_id, planned_minutes, start_time, end_time, active, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// ListActiveSessions retrieves all active sessions ordered by start time.
// Deadlines are always recomputed from start_time + planned_minutes, so
// a process restart neither loses nor duplicates an expiry.
func (s *SQLiteStorage) ListActiveSessions(ctx context.Context) ([]*core.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_app_id, planned_minutes, start_time, end_time, active, created_at, updated_at
		FROM sessions WHERE active = 1 ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*core.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Helper functions

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.Session, error) {
	var session core.Session
	var endTime sql.NullTime
	var active int

	err := row.Scan(&session.ID, &session.TargetAppID, &session.PlannedMinutes,
		&session.StartTime, &endTime, &active, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	session.Active = active == 1

	return &session, nil
}
