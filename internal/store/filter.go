package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/derive/internal/engine"
)

// Predicate is a condition on the events table.
type Predicate interface {
	predicate()
}

// Equals matches a column against a value.
type Equals struct {
	Column string
	Value  any
}

// In matches a column against any of a set of values.
type In struct {
	Column string
	Values []any
}

// AtLeast matches rows whose column is greater than or equal to Value.
type AtLeast struct {
	Column string
	Value  any
}

// And matches when every predicate matches.
type And []Predicate

func (Equals) predicate()  {}
func (In) predicate()      {}
func (AtLeast) predicate() {}
func (And) predicate()     {}

// filterColumns are the columns a predicate may name.
var filterColumns = map[string]bool{
	"kind":     true,
	"query":    true,
	"key":      true,
	"revision": true,
	"changed":  true,
	"checked":  true,
}

// Filter selects events of one session.
type Filter struct {
	Query       string
	Key         string
	Kinds       []engine.EventKind
	MinRevision engine.Revision
}

// Predicate converts the filter into a predicate tree. An empty filter
// yields an empty And, which matches everything.
func (f Filter) Predicate() Predicate {
	var and And
	if f.Query != "" {
		and = append(and, Equals{Column: "query", Value: f.Query})
	}
	if f.Key != "" {
		and = append(and, Equals{Column: "key", Value: f.Key})
	}
	if len(f.Kinds) > 0 {
		values := make([]any, len(f.Kinds))
		for i, k := range f.Kinds {
			values[i] = string(k)
		}
		and = append(and, In{Column: "kind", Values: values})
	}
	if f.MinRevision > 0 {
		and = append(and, AtLeast{Column: "revision", Value: int64(f.MinRevision)})
	}
	return and
}

// compileSelect builds the events query for a session. Values are always
// bound as parameters and rows are always ordered by sequence.
func compileSelect(session string, p Predicate) (string, []any, error) {
	where, params, err := compilePredicate(p)
	if err != nil {
		return "", nil, err
	}
	query := `SELECT session_id, seq, kind, query, key, revision, changed, checked, error
		FROM events
		WHERE session_id = ?`
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY seq ASC"
	return query, append([]any{session}, params...), nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, nil
	case Equals:
		if err := checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		return pred.Column + " = ?", []any{pred.Value}, nil
	case AtLeast:
		if err := checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		return pred.Column + " >= ?", []any{pred.Value}, nil
	case In:
		if err := checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		return fmt.Sprintf("%s IN (%s)", pred.Column, marks), pred.Values, nil
	case And:
		var parts []string
		var params []any
		for i, sub := range pred {
			sql, subParams, err := compilePredicate(sub)
			if err != nil {
				return "", nil, fmt.Errorf("and[%d]: %w", i, err)
			}
			if sql == "" {
				continue
			}
			parts = append(parts, "("+sql+")")
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func checkColumn(col string) error {
	if !filterColumns[col] {
		return fmt.Errorf("unknown column %q", col)
	}
	return nil
}

// QueryEvents returns the events of a session that match p, in sequence
// order. A nil predicate returns every event.
func (s *Store) QueryEvents(ctx context.Context, session string, p Predicate) ([]Record, error) {
	query, params, err := compileSelect(session, p)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}
