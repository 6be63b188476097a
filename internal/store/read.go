package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/derive/internal/engine"
)

// Record is a stored event.
type Record struct {
	Session  string           `json:"session"`
	Seq      int64            `json:"seq"`
	Kind     engine.EventKind `json:"kind"`
	Query    string           `json:"query"`
	Key      string           `json:"key,omitempty"`
	Revision engine.Revision  `json:"revision"`
	Changed  engine.Revision  `json:"changed"`
	Checked  engine.Revision  `json:"checked"`
	Error    string           `json:"error,omitempty"`
}

// Event converts the record back into an engine event.
func (r Record) Event() engine.Event {
	ev := engine.Event{
		Kind:     r.Kind,
		Query:    r.Query,
		Key:      r.Key,
		Revision: r.Revision,
		Changed:  r.Changed,
		Checked:  r.Checked,
	}
	if r.Error != "" {
		ev.Err = errors.New(r.Error)
	}
	return ev
}

// Session summarizes one recorded session.
type Session struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Events int64  `json:"events"`
}

// Stats counts a session's events by kind.
type Stats struct {
	Total  int64                      `json:"total"`
	ByKind map[engine.EventKind]int64 `json:"by_kind"`
}

// ReadEvents returns the events of a session in sequence order.
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, session string) ([]Record, error) {
	return s.QueryEvents(ctx, session, nil)
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var kind string
	var rev, changed, checked int64
	if err := rows.Scan(&r.Session, &r.Seq, &kind, &r.Query, &r.Key, &rev, &changed, &checked, &r.Error); err != nil {
		return Record{}, fmt.Errorf("scan event: %w", err)
	}
	r.Kind = engine.EventKind(kind)
	r.Revision = engine.Revision(rev)
	r.Changed = engine.Revision(changed)
	r.Checked = engine.Revision(checked)
	return r, nil
}

// Sessions lists every session in creation order.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY MIN(s.rowid) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Label, &sess.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Stats counts the events of a session by kind.
func (s *Store) Stats(ctx context.Context, session string) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM events
		WHERE session_id = ?
		GROUP BY kind
		ORDER BY kind
	`, session)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{ByKind: make(map[engine.EventKind]int64)}
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByKind[engine.EventKind(kind)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}
