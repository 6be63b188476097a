package engine

import (
	"strconv"
	"sync/atomic"
)

// Revision identifies a point in logical time.
//
// Revisions are issued by a Clock and are totally ordered: a revision issued
// later always compares greater than every revision issued before it.
// The zero Revision means "before any write".
type Revision int64

// String renders the revision as "r<n>".
func (r Revision) String() string {
	return "r" + strconv.FormatInt(int64(r), 10)
}

// Clock is the monotonic revision counter shared by every query of a Runtime.
//
// Advance is the only mutator and is called exactly once per input write.
// The revision returned by Advance is also the new Current, so a fact's
// changed stamp is observable as Current by the very next read.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	rev atomic.Int64
}

// NewClock creates a new clock starting at revision 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific revision.
// Used by tests that need revisions from a known offset.
func NewClockAt(start Revision) *Clock {
	c := &Clock{}
	c.rev.Store(int64(start))
	return c
}

// Advance issues a fresh revision strictly greater than any previously issued
// or observed one. Calls are linearizable.
func (c *Clock) Advance() Revision {
	return Revision(c.rev.Add(1))
}

// Current returns the latest issued revision without advancing.
func (c *Clock) Current() Revision {
	return Revision(c.rev.Load())
}
