package engine

import (
	"context"
	"log/slog"
)

// EventKind classifies what happened to a cache entry.
type EventKind string

const (
	// EventSet is an input write. Revision is the newly issued revision.
	EventSet EventKind = "set"

	// EventRemove is an input write of absence.
	EventRemove EventKind = "remove"

	// EventNegative is a negative cache entry synthesized for an unset input key.
	EventNegative EventKind = "negative"

	// EventHit means the entry was already checked at the current revision.
	EventHit EventKind = "hit"

	// EventRevalidated means no dependency changed; only Checked advanced.
	EventRevalidated EventKind = "revalidated"

	// EventRecomputed means the compute function ran and Changed advanced.
	EventRecomputed EventKind = "recomputed"

	// EventCutoff means the compute function ran but produced an equal value,
	// so Changed stayed put.
	EventCutoff EventKind = "cutoff"

	// EventFailed means the compute function failed and nothing was stored.
	EventFailed EventKind = "failed"
)

// Event describes one observable step of the engine.
type Event struct {
	Kind     EventKind
	Query    string
	Key      string
	Revision Revision // revision current when the event happened
	Changed  Revision
	Checked  Revision
	Err      error
}

// Observer receives engine events.
//
// Observers are called synchronously from Get and Set. Implementations
// must be safe for concurrent use and must not call back into queries.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// NopObserver discards all events.
type NopObserver struct{}

// OnEvent does nothing.
func (NopObserver) OnEvent(context.Context, Event) {}

type multiObserver []Observer

func (m multiObserver) OnEvent(ctx context.Context, ev Event) {
	for _, o := range m {
		o.OnEvent(ctx, ev)
	}
}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o == nil {
			continue
		}
		if m, ok := o.(multiObserver); ok {
			out = append(out, m...)
			continue
		}
		out = append(out, o)
	}
	switch len(out) {
	case 0:
		return NopObserver{}
	case 1:
		return out[0]
	default:
		return out
	}
}

// LogObserver logs every event at debug level. Failures log at warn.
func LogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		if ev.Kind == EventFailed {
			logger.WarnContext(ctx, "query compute failed",
				"query", ev.Query,
				"key", ev.Key,
				"revision", int64(ev.Revision),
				"error", ev.Err,
			)
			return
		}
		logger.DebugContext(ctx, "query event",
			"event", string(ev.Kind),
			"query", ev.Query,
			"key", ev.Key,
			"revision", int64(ev.Revision),
			"changed", int64(ev.Changed),
			"checked", int64(ev.Checked),
		)
	})
}
