package testutil

import "sync"

// Counter counts compute-function invocations by name.
//
// Tests wrap compute functions with Counter.Inc to assert how many times the
// engine actually ran them, as opposed to serving a cached entry.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Inc increments the count for name and returns the new value.
func (c *Counter) Inc(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
	return c.counts[name]
}

// Get returns the count for name.
func (c *Counter) Get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Reset clears all counts.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}
