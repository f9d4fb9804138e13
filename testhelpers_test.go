package wander

import (
	"context"

	"github.com/rs/zerolog"
)

// syncExec runs jobs inline on the caller's goroutine, removing queue
// timing from store tests.
type syncExec struct{ stops int }

func (e *syncExec) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (e *syncExec) Stop() { e.stops++ }

// eventRecorder counts published events by type.
type eventRecorder struct {
	hub    *Hub
	counts map[Event]int
}

func newEventRecorder() *eventRecorder {
	r := &eventRecorder{hub: newHub(zerolog.Nop()), counts: make(map[Event]int)}
	r.hub.Subscribe(func(e Event) { r.counts[e]++ })
	return r
}
