package wander

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	apierr "github.com/wanderapp/wander-go/internal/errors"
	"github.com/wanderapp/wander-go/internal/gateway"
	"github.com/wanderapp/wander-go/internal/types"
)

func reviewJSON(id, attractionID, userID string, rating int, author string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"attraction_id":%q,"user_id":%q,"rating":%d,"created_at":"2025-01-01T00:00:00Z","profiles":{"display_name":%q}}`,
		id, attractionID, userID, rating, author))
}

// stubReviewGW implements reviewGateway with a mutable canned row set.
type stubReviewGW struct {
	mu sync.Mutex

	rows      []json.RawMessage
	selectErr error
	insertErr error
	updateErr error
	deleteErr error
	uploadErr error

	inserted []types.NewReview
	patches  []types.ReviewPatch
	patchTo  []url.Values
	deleted  []url.Values
	uploads  []string
	removed  [][]string
}

func (g *stubReviewGW) Select(_ context.Context, _ string, opts ...gateway.QueryOption) ([]json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rows, g.selectErr
}

func (g *stubReviewGW) Insert(_ context.Context, _ string, row any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.insertErr == nil {
		g.inserted = append(g.inserted, row.(types.NewReview))
	}
	return g.insertErr
}

func (g *stubReviewGW) Update(_ context.Context, _ string, patch any, opts ...gateway.QueryOption) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr == nil {
		g.patches = append(g.patches, patch.(types.ReviewPatch))
		g.patchTo = append(g.patchTo, valuesOf(opts))
	}
	return g.updateErr
}

func (g *stubReviewGW) Delete(_ context.Context, _ string, opts ...gateway.QueryOption) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteErr == nil {
		g.deleted = append(g.deleted, valuesOf(opts))
	}
	return g.deleteErr
}

func (g *stubReviewGW) Upload(_ context.Context, _, path string, _ []byte, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr == nil {
		g.uploads = append(g.uploads, path)
	}
	return g.uploadErr
}

func (g *stubReviewGW) PublicURL(bucket, path string) string {
	return "https://cdn.example.com/storage/v1/object/public/" + bucket + "/" + path
}

func (g *stubReviewGW) Remove(_ context.Context, _ string, paths []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = append(g.removed, paths)
	return nil
}

func (g *stubReviewGW) setRows(rows ...json.RawMessage) {
	g.mu.Lock()
	g.rows = rows
	g.mu.Unlock()
}

// fixedSession is a sessionSource pinned to one user.
type fixedSession struct{ sess *types.Session }

func (f *fixedSession) Current() *types.Session { return f.sess }

func newTestReviews(gw reviewGateway, userID string) (*ReviewStore, *eventRecorder) {
	rec := newEventRecorder()
	src := &fixedSession{}
	if userID != "" {
		src.sess = &types.Session{UserID: userID}
	}
	return newReviewStore(gw, &syncExec{}, rec.hub, src, zerolog.Nop()), rec
}

func TestFetchReviewsPopulatesCollectionAndOwnIndex(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{rows: []json.RawMessage{
		reviewJSON("r2", "a1", "other", 3, "Sam"),
		reviewJSON("r1", "a1", "me", 5, "Jo"),
	}}
	s, rec := newTestReviews(gw, "me")

	if err := s.FetchReviews(context.Background(), "a1"); err != nil {
		t.Fatalf("FetchReviews: %v", err)
	}
	if s.State() != StateLoaded {
		t.Fatalf("state = %v, want Loaded", s.State())
	}
	got := s.Reviews()
	if len(got) != 2 || got[0].AuthorName != "Sam" || got[1].AuthorName != "Jo" {
		t.Fatalf("unexpected reviews: %+v", got)
	}
	if !s.UserHasReviewed("a1") {
		t.Fatal("own review not indexed")
	}
	if own := s.UserReview("a1"); own == nil || own.ID != "r1" || own.Rating != 5 {
		t.Fatalf("unexpected own review: %+v", own)
	}
	if s.AttractionID() != "a1" {
		t.Fatalf("attraction id = %q", s.AttractionID())
	}
	if rec.counts[EventReviewsUpdated] != 1 {
		t.Fatalf("review events = %d, want 1", rec.counts[EventReviewsUpdated])
	}
}

func TestFetchReviewsFailureRetainsRows(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{rows: []json.RawMessage{reviewJSON("r1", "a1", "me", 4, "Jo")}}
	s, _ := newTestReviews(gw, "me")

	if err := s.FetchReviews(context.Background(), "a1"); err != nil {
		t.Fatalf("FetchReviews: %v", err)
	}
	gw.mu.Lock()
	gw.selectErr = apierr.NewTransport("select reviews", fmt.Errorf("boom"))
	gw.mu.Unlock()

	if err := s.FetchReviews(context.Background(), "a1"); err == nil {
		t.Fatal("expected error")
	}
	if s.State() != StateError {
		t.Fatalf("state = %v, want Error", s.State())
	}
	if len(s.Reviews()) != 1 {
		t.Fatal("rows lost on failed refetch")
	}
	if s.Err() == "" {
		t.Fatal("error not recorded")
	}
}

func TestAddReviewInsertsThenRefetches(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{}
	s, _ := newTestReviews(gw, "me")

	// The post-write refetch sees the new row.
	gw.setRows(reviewJSON("r1", "a1", "me", 4, "Jo"))
	if err := s.AddOrUpdateReview(context.Background(), "a1", "me", 4, "  great place  ", nil); err != nil {
		t.Fatalf("AddOrUpdateReview: %v", err)
	}
	if len(gw.inserted) != 1 {
		t.Fatalf("inserts = %d, want 1", len(gw.inserted))
	}
	ins := gw.inserted[0]
	if ins.ID == "" || ins.AttractionID != "a1" || ins.UserID != "me" || ins.Rating != 4 {
		t.Fatalf("unexpected insert row: %+v", ins)
	}
	if ins.Comment == nil || *ins.Comment != "great place" {
		t.Fatalf("comment not trimmed: %v", ins.Comment)
	}
	if !s.UserHasReviewed("a1") {
		t.Fatal("own index not refreshed after insert")
	}
}

func TestResubmitUpdatesExistingReviewInPlace(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{rows: []json.RawMessage{reviewJSON("r1", "a1", "me", 3, "Jo")}}
	s, _ := newTestReviews(gw, "me")

	if err := s.FetchReviews(context.Background(), "a1"); err != nil {
		t.Fatalf("FetchReviews: %v", err)
	}

	gw.setRows(reviewJSON("r1", "a1", "me", 5, "Jo"))
	if err := s.AddOrUpdateReview(context.Background(), "a1", "me", 5, "", nil); err != nil {
		t.Fatalf("AddOrUpdateReview: %v", err)
	}
	if len(gw.inserted) != 0 {
		t.Fatal("resubmission inserted a second row")
	}
	if len(gw.patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(gw.patches))
	}
	p := gw.patches[0]
	if p.Rating != 5 || p.Comment != nil || p.ImageURLs != nil {
		t.Fatalf("unexpected patch: %+v", p)
	}
	filters := gw.patchTo[0]
	if filters.Get("id") != "eq.r1" || filters.Get("user_id") != "eq.me" {
		t.Fatalf("patch filters = %v", filters)
	}
	if own := s.UserReview("a1"); own == nil || own.Rating != 5 {
		t.Fatalf("own index stale after update: %+v", own)
	}
}

func TestAddReviewRejectsZeroRating(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{}
	s, rec := newTestReviews(gw, "me")

	err := s.AddOrUpdateReview(context.Background(), "a1", "me", 0, "nice", nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidationError(err) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if len(gw.inserted) != 0 || len(gw.patches) != 0 {
		t.Fatal("network call attempted despite validation failure")
	}
	if rec.counts[EventReviewsUpdated] != 0 {
		t.Fatal("notification fired despite failure")
	}
}

func TestDeleteReviewClearsStateAndImages(t *testing.T) {
	t.Parallel()
	imageURL := "https://cdn.example.com/storage/v1/object/public/review-images/me/pic.jpg"
	row := json.RawMessage(fmt.Sprintf(
		`{"id":"r1","attraction_id":"a1","user_id":"me","rating":4,"image_urls":[%q],"created_at":"2025-01-01T00:00:00Z"}`,
		imageURL))
	gw := &stubReviewGW{rows: []json.RawMessage{row}}
	s, rec := newTestReviews(gw, "me")

	if err := s.FetchReviews(context.Background(), "a1"); err != nil {
		t.Fatalf("FetchReviews: %v", err)
	}
	if err := s.DeleteReview(context.Background(), "r1", "me"); err != nil {
		t.Fatalf("DeleteReview: %v", err)
	}
	if len(s.Reviews()) != 0 {
		t.Fatal("review survived deletion")
	}
	if s.UserHasReviewed("a1") {
		t.Fatal("own index survived deletion")
	}
	filters := gw.deleted[0]
	if filters.Get("id") != "eq.r1" || filters.Get("user_id") != "eq.me" {
		t.Fatalf("delete filters = %v", filters)
	}
	if len(gw.removed) != 1 || len(gw.removed[0]) != 1 || gw.removed[0][0] != "me/pic.jpg" {
		t.Fatalf("unexpected storage removal: %v", gw.removed)
	}
	if rec.counts[EventReviewsUpdated] != 2 {
		t.Fatalf("review events = %d, want 2", rec.counts[EventReviewsUpdated])
	}
}

func TestDeleteReviewFailureKeepsCollection(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{rows: []json.RawMessage{reviewJSON("r1", "a1", "me", 4, "Jo")}}
	s, _ := newTestReviews(gw, "me")

	if err := s.FetchReviews(context.Background(), "a1"); err != nil {
		t.Fatalf("FetchReviews: %v", err)
	}
	gw.deleteErr = apierr.ClassifyHTTPStatus(403, "forbidden", "delete review")

	if err := s.DeleteReview(context.Background(), "r1", "me"); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Reviews()) != 1 {
		t.Fatal("review removed despite remote failure")
	}
	if !s.UserHasReviewed("a1") {
		t.Fatal("own index cleared despite remote failure")
	}
}

func TestUploadReviewImage(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{}
	s, _ := newTestReviews(gw, "me")

	u, err := s.UploadReviewImage(context.Background(), "me", []byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("UploadReviewImage: %v", err)
	}
	if len(gw.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(gw.uploads))
	}
	path := gw.uploads[0]
	if !strings.HasPrefix(path, "me/") || !strings.HasSuffix(path, ".jpg") {
		t.Fatalf("unexpected object path: %q", path)
	}
	if !strings.HasSuffix(u, path) {
		t.Fatalf("returned URL %q does not reference %q", u, path)
	}

	if _, err := s.UploadReviewImage(context.Background(), "me", nil, "image/png"); err == nil {
		t.Fatal("empty payload accepted")
	}
}

func TestDecodeReviewsSkipsInvalidRows(t *testing.T) {
	t.Parallel()
	gw := &stubReviewGW{rows: []json.RawMessage{
		reviewJSON("r1", "a1", "u1", 4, "Jo"),
		json.RawMessage(`{bad json`),
		reviewJSON("", "a1", "u2", 4, "NoID"),
		reviewJSON("r3", "a1", "u3", 11, "BadRating"),
		reviewJSON("r4", "a1", "u4", 1, "Sam"),
	}}
	s, _ := newTestReviews(gw, "")

	if err := s.FetchReviews(context.Background(), "a1"); err != nil {
		t.Fatalf("FetchReviews: %v", err)
	}
	got := s.Reviews()
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r4" {
		t.Fatalf("unexpected surviving rows: %+v", got)
	}
}

func TestCollectionStateString(t *testing.T) {
	t.Parallel()
	if StateEmpty.String() != "Empty" || StateLoading.String() != "Loading" ||
		StateLoaded.String() != "Loaded" || StateError.String() != "Error" ||
		CollectionState(42).String() != "Unknown" {
		t.Fatal("unexpected state names")
	}
}
