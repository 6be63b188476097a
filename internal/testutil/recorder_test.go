package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/derive/internal/engine"
)

func TestRecorder_KeepsOrder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	r.OnEvent(ctx, engine.Event{Kind: engine.EventSet, Query: "src"})
	r.OnEvent(ctx, engine.Event{Kind: engine.EventRecomputed, Query: "parse"})
	r.OnEvent(ctx, engine.Event{Kind: engine.EventCutoff, Query: "parse"})

	assert.Len(t, r.Events(), 3)
	assert.Equal(t, []engine.EventKind{engine.EventRecomputed, engine.EventCutoff}, r.Kinds("parse"))
	assert.Equal(t, 1, r.Count("src", engine.EventSet))
	assert.Equal(t, 0, r.Count("src", engine.EventHit))

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc("parse")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Get("parse"))
	assert.Equal(t, 0, c.Get("other"))

	c.Reset()
	assert.Equal(t, 0, c.Get("parse"))
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("build")
	assert.Equal(t, "build-1", g.Generate())
	assert.Equal(t, "build-2", g.Generate())

	d := NewSequentialIDs("")
	assert.Equal(t, "id-1", d.Generate())
}
