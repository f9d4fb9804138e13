package wander

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event identifies which piece of published state changed. The UI layer
// subscribes and re-reads the matching snapshot accessor; the SDK assumes
// no particular binding technology.
type Event int

const (
	// EventSessionChanged fires on LoggedOut -> LoggedIn transitions and
	// the reverse, never on validations that confirm the current presence.
	EventSessionChanged Event = iota
	// EventAttractionsUpdated fires when the fetched/searched list is replaced.
	EventAttractionsUpdated
	// EventFavoritesUpdated fires when favorite membership changes.
	EventFavoritesUpdated
	// EventReviewsUpdated fires when the per-attraction review collection changes.
	EventReviewsUpdated
)

// String returns a human-readable representation of the event.
func (e Event) String() string {
	switch e {
	case EventSessionChanged:
		return "SessionChanged"
	case EventAttractionsUpdated:
		return "AttractionsUpdated"
	case EventFavoritesUpdated:
		return "FavoritesUpdated"
	case EventReviewsUpdated:
		return "ReviewsUpdated"
	default:
		return "Unknown"
	}
}

// Hub is the state-change notification mechanism shared by all stores.
// Callbacks run synchronously after the mutation commits, on the calling
// goroutine; keep them short and hop to your UI loop yourself.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
	log  zerolog.Logger
}

func newHub(log zerolog.Logger) *Hub {
	return &Hub{subs: make(map[int]func(Event)), log: log}
}

// Subscribe registers fn for every published event and returns a cancel
// function. Cancel is idempotent.
func (h *Hub) Subscribe(fn func(Event)) (cancel func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// publish delivers e to every subscriber. Listeners are snapshotted under
// the lock and invoked outside it so a callback may subscribe or cancel.
func (h *Hub) publish(e Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	h.log.Debug().Stringer("event", e).Int("subscribers", len(fns)).Msg("publishing state change")
	for _, fn := range fns {
		fn(e)
	}
}
