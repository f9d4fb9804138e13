package wander

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	apierr "github.com/wanderapp/wander-go/internal/errors"
	"github.com/wanderapp/wander-go/internal/gateway"
	"github.com/wanderapp/wander-go/internal/types"
)

func attractionRow(id, name, category string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"name":%q,"description":"","category":%q,"created_at":"2025-01-01T00:00:00Z"}`,
		id, name, category))
}

// stubQuery implements attractionGateway, recording each select's filters.
type stubQuery struct {
	mu sync.Mutex

	selectRows  []json.RawMessage
	selectErr   error
	edges       []types.FavoriteEdge
	edgesErr    error
	insertErr   error
	deleteErr   error
	rpcRows     []json.RawMessage
	rpcErr      error
	selectCalls []url.Values
	inserted    []any
	deleted     []url.Values
	rpcArgs     any
}

func valuesOf(opts []gateway.QueryOption) url.Values {
	v := url.Values{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (s *stubQuery) Select(_ context.Context, table string, opts ...gateway.QueryOption) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectCalls = append(s.selectCalls, valuesOf(opts))
	return s.selectRows, s.selectErr
}

func (s *stubQuery) SelectFavorites(context.Context, string) ([]types.FavoriteEdge, error) {
	return s.edges, s.edgesErr
}

func (s *stubQuery) Insert(_ context.Context, _ string, row any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr == nil {
		s.inserted = append(s.inserted, row)
	}
	return s.insertErr
}

func (s *stubQuery) Delete(_ context.Context, _ string, opts ...gateway.QueryOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr == nil {
		s.deleted = append(s.deleted, valuesOf(opts))
	}
	return s.deleteErr
}

func (s *stubQuery) RPC(_ context.Context, _ string, args any) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcArgs = args
	return s.rpcRows, s.rpcErr
}

func newTestCache(gw attractionGateway) (*AttractionCache, *eventRecorder) {
	rec := newEventRecorder()
	return newAttractionCache(gw, &syncExec{}, rec.hub, zerolog.Nop()), rec
}

func TestFetchByCategory(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{selectRows: []json.RawMessage{
		attractionRow("a1", "North Shore", "Beaches"),
		attractionRow("a2", "South Cove", "Beaches"),
	}}
	c, rec := newTestCache(gw)

	if err := c.Fetch(context.Background(), "Beaches"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := gw.selectCalls[0].Get("category"); got != "eq.Beaches" {
		t.Fatalf("category filter = %q, want eq.Beaches", got)
	}
	if len(c.Attractions()) != 2 {
		t.Fatalf("attractions = %d, want 2", len(c.Attractions()))
	}
	if rec.counts[EventAttractionsUpdated] != 1 {
		t.Fatalf("attraction events = %d, want 1", rec.counts[EventAttractionsUpdated])
	}
}

func TestFetchFailureRetainsPreviousList(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{selectRows: []json.RawMessage{attractionRow("a1", "Museum", "Culture")}}
	c, _ := newTestCache(gw)

	if err := c.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	gw.selectErr = apierr.NewTransport("select attractions", fmt.Errorf("connection refused"))
	if err := c.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if len(c.Attractions()) != 1 {
		t.Fatal("previous list should survive a failed fetch")
	}
	if c.Err() == "" {
		t.Fatal("error state not recorded")
	}

	// The next operation clears the error first.
	gw.selectErr = nil
	if err := c.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if c.Err() != "" {
		t.Fatalf("stale error survived: %q", c.Err())
	}
}

func TestSearchEmptyQueryBehavesLikeFetch(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{}
	c, _ := newTestCache(gw)

	if err := c.Search(context.Background(), "", "Parks"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	v := gw.selectCalls[0]
	if v.Get("or") != "" {
		t.Fatal("empty query should not build a substring filter")
	}
	if v.Get("category") != "eq.Parks" {
		t.Fatalf("category filter = %q", v.Get("category"))
	}
}

func TestSearchCombinesSubstringAndCategory(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{}
	c, _ := newTestCache(gw)

	if err := c.Search(context.Background(), "beach", "Beaches"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	v := gw.selectCalls[0]
	if v.Get("or") != "(name.ilike.*beach*,description.ilike.*beach*,category.ilike.*beach*,subcategory.ilike.*beach*)" {
		t.Fatalf("substring filter = %q", v.Get("or"))
	}
	if v.Get("category") != "eq.Beaches" {
		t.Fatalf("category filter = %q", v.Get("category"))
	}
}

func TestFetchNearbyFallsBackOnRPCFailure(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{
		rpcErr:     apierr.NewTransport("rpc", fmt.Errorf("boom")),
		selectRows: []json.RawMessage{attractionRow("a1", "Harbor", "Sights")},
	}
	c, _ := newTestCache(gw)

	if err := c.FetchNearby(context.Background(), 54.7, 25.3, 10); err != nil {
		t.Fatalf("FetchNearby should not surface the RPC failure: %v", err)
	}
	if len(c.Attractions()) != 1 {
		t.Fatal("fallback fetch did not populate the list")
	}
}

func TestFetchNearbySuccess(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{rpcRows: []json.RawMessage{attractionRow("a9", "Close By", "Sights")}}
	c, _ := newTestCache(gw)

	if err := c.FetchNearby(context.Background(), 54.7, 25.3, 5); err != nil {
		t.Fatalf("FetchNearby: %v", err)
	}
	args, ok := gw.rpcArgs.(map[string]float64)
	if !ok || args["radius_km"] != 5 {
		t.Fatalf("unexpected rpc args: %v", gw.rpcArgs)
	}
	if len(gw.selectCalls) != 0 {
		t.Fatal("no fallback select expected on success")
	}
	if got := c.Attractions(); len(got) != 1 || got[0].ID != "a9" {
		t.Fatalf("unexpected attractions: %v", got)
	}
}

func TestFetchFavoritesTwoStep(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{
		edges: []types.FavoriteEdge{
			{UserID: "u1", AttractionID: "a1"},
			{UserID: "u1", AttractionID: "a2"},
		},
		selectRows: []json.RawMessage{
			attractionRow("a1", "Museum", "Culture"),
			attractionRow("a2", "Park", "Nature"),
		},
	}
	c, rec := newTestCache(gw)

	if err := c.FetchFavorites(context.Background(), "u1"); err != nil {
		t.Fatalf("FetchFavorites: %v", err)
	}
	if got := gw.selectCalls[0].Get("id"); got != `in.("a1","a2")` {
		t.Fatalf("batch filter = %q", got)
	}
	if len(c.Favorites()) != 2 {
		t.Fatalf("favorites = %d, want 2", len(c.Favorites()))
	}
	if rec.counts[EventFavoritesUpdated] != 1 {
		t.Fatalf("favorite events = %d, want 1", rec.counts[EventFavoritesUpdated])
	}
}

func TestFetchFavoritesEmptySkipsSecondRequest(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{}
	c, _ := newTestCache(gw)

	if err := c.FetchFavorites(context.Background(), "u1"); err != nil {
		t.Fatalf("FetchFavorites: %v", err)
	}
	if len(gw.selectCalls) != 0 {
		t.Fatal("empty edge set must not trigger a batch fetch")
	}
	if len(c.Favorites()) != 0 {
		t.Fatal("favorites should be empty")
	}
}

func TestAddRemoveFavoriteRoundTrip(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{selectRows: []json.RawMessage{attractionRow("a1", "Museum", "Culture")}}
	c, _ := newTestCache(gw)

	if err := c.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !c.AddFavorite(context.Background(), "a1", "u1") {
		t.Fatal("AddFavorite failed")
	}
	if !c.IsFavorite("a1") {
		t.Fatal("IsFavorite false after successful add")
	}
	// Re-adding must not duplicate the local entry.
	if !c.AddFavorite(context.Background(), "a1", "u1") {
		t.Fatal("second AddFavorite failed")
	}
	if len(c.Favorites()) != 1 {
		t.Fatalf("favorites = %d, want 1", len(c.Favorites()))
	}

	if !c.RemoveFavorite(context.Background(), "a1", "u1") {
		t.Fatal("RemoveFavorite failed")
	}
	if c.IsFavorite("a1") {
		t.Fatal("IsFavorite true after successful remove")
	}
	if got := gw.deleted[0]; got.Get("user_id") != "eq.u1" || got.Get("attraction_id") != "eq.a1" {
		t.Fatalf("delete filters = %v", got)
	}

	// Removing an already-absent edge succeeds and leaves the list alone.
	if !c.RemoveFavorite(context.Background(), "a1", "u1") {
		t.Fatal("idempotent RemoveFavorite failed")
	}
	if len(c.Favorites()) != 0 {
		t.Fatal("favorites list disturbed by idempotent remove")
	}
}

func TestAddFavoriteFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{insertErr: apierr.NewTransport("insert favorites", fmt.Errorf("boom"))}
	c, rec := newTestCache(gw)

	if c.AddFavorite(context.Background(), "a1", "u1") {
		t.Fatal("expected failure")
	}
	if c.IsFavorite("a1") {
		t.Fatal("favorite applied despite remote failure")
	}
	if c.Err() == "" {
		t.Fatal("error not recorded")
	}
	if rec.counts[EventFavoritesUpdated] != 0 {
		t.Fatal("notification fired despite failure")
	}
}

func TestAddFavoriteValidatesIdentifiers(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{}
	c, _ := newTestCache(gw)

	if c.AddFavorite(context.Background(), "", "u1") {
		t.Fatal("empty attraction id accepted")
	}
	if c.AddFavorite(context.Background(), "a1", "") {
		t.Fatal("empty user id accepted")
	}
	if len(gw.inserted) != 0 {
		t.Fatal("network call attempted despite validation failure")
	}
}

func TestDecodeSkipsMalformedRows(t *testing.T) {
	t.Parallel()
	gw := &stubQuery{selectRows: []json.RawMessage{
		attractionRow("a1", "Museum", "Culture"),
		json.RawMessage(`{"name":"missing id"}`),
		json.RawMessage(`{bad json`),
		attractionRow("a2", "Park", "Nature"),
	}}
	c, _ := newTestCache(gw)

	if err := c.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := c.Attractions()
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("unexpected surviving rows: %v", got)
	}
}
