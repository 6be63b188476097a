package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/derive/internal/engine"
)

// ErrReadOnly is returned by writes on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("store is read-only")

// CreateSession registers a new session and returns its UUIDv7 id.
func (s *Store) CreateSession(ctx context.Context, label string) (string, error) {
	if s.readOnly {
		return "", ErrReadOnly
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, label) VALUES (?, ?)`, id.String(), label); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id.String(), nil
}

// WriteEvent appends one event to a session. Writing the same (session, seq)
// twice is a no-op.
func (s *Store) WriteEvent(ctx context.Context, session string, seq int64, ev engine.Event) error {
	if s.readOnly {
		return ErrReadOnly
	}
	var errText string
	if ev.Err != nil {
		errText = ev.Err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, kind, query, key, revision, changed, checked, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		session,
		seq,
		string(ev.Kind),
		ev.Query,
		ev.Key,
		int64(ev.Revision),
		int64(ev.Changed),
		int64(ev.Checked),
		errText,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
