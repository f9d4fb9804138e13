package wander

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apierr "github.com/wanderapp/wander-go/internal/errors"
	"github.com/wanderapp/wander-go/internal/gateway"
	"github.com/wanderapp/wander-go/internal/types"
)

const (
	reviewsTable       = "reviews"
	reviewImagesBucket = "review-images"

	// reviewsKey serializes all review mutations on one shard; the store
	// holds one attraction's collection at a time, so cross-attraction
	// parallelism buys nothing.
	reviewsKey = "reviews"

	// reviewColumns embeds the author's profile so display names arrive
	// with the rows instead of per-review lookups.
	reviewColumns = "*,profiles(display_name)"
)

// CollectionState is the lifecycle of the per-attraction review collection.
type CollectionState int

const (
	// StateEmpty means no fetch has happened yet.
	StateEmpty CollectionState = iota
	// StateLoading means a fetch is in flight; prior rows are retained.
	StateLoading
	// StateLoaded means the collection reflects the last successful fetch.
	StateLoaded
	// StateError means the last fetch failed; prior rows are retained.
	StateError
)

// String returns a human-readable representation of the state.
func (s CollectionState) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateLoading:
		return "Loading"
	case StateLoaded:
		return "Loaded"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// reviewGateway is the slice of the remote gateway the store needs.
type reviewGateway interface {
	Select(ctx context.Context, table string, opts ...gateway.QueryOption) ([]json.RawMessage, error)
	Insert(ctx context.Context, table string, row any) error
	Update(ctx context.Context, table string, patch any, opts ...gateway.QueryOption) error
	Delete(ctx context.Context, table string, opts ...gateway.QueryOption) error
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths []string) error
}

// sessionSource lets the store resolve the active user without owning the
// session.
type sessionSource interface {
	Current() *types.Session
}

// ReviewStore holds the review collection for one attraction at a time and
// tracks the calling user's own review per attraction so a resubmission
// updates in place instead of inserting a second row.
type ReviewStore struct {
	gw       reviewGateway
	exec     executor
	hub      *Hub
	sessions sessionSource
	log      zerolog.Logger

	mu           sync.RWMutex
	attractionID string
	reviews      []types.Review
	state        CollectionState
	lastErr      string
	own          map[string]types.Review // attraction id -> own review
}

func newReviewStore(gw reviewGateway, exec executor, hub *Hub, sessions sessionSource, log zerolog.Logger) *ReviewStore {
	return &ReviewStore{
		gw:       gw,
		exec:     exec,
		hub:      hub,
		sessions: sessions,
		log:      log,
		own:      make(map[string]types.Review),
	}
}

// reviewRow is the wire shape of one review joined with its author profile.
type reviewRow struct {
	types.Review
	Author *struct {
		DisplayName string `json:"display_name"`
	} `json:"profiles"`
}

// FetchReviews replaces the cached collection for attractionID with the
// remote one, newest first. Malformed rows are skipped individually. The
// own-review index entry for the attraction is refreshed as a side effect.
func (s *ReviewStore) FetchReviews(ctx context.Context, attractionID string) error {
	if err := types.ValidateID("attraction id", attractionID); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.lastErr = ""
	s.state = StateLoading
	s.attractionID = attractionID
	s.mu.Unlock()

	rows, err := s.gw.Select(ctx, reviewsTable,
		gateway.Columns(reviewColumns),
		gateway.Eq("attraction_id", attractionID),
		gateway.OrderBy("created_at", true),
	)
	cacheRefreshesTotal.WithLabelValues("reviews", resultLabel(err)).Inc()
	if err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.state = StateError
		s.mu.Unlock()
		return err
	}

	reviews := s.decodeReviews(rows)

	var ownID string
	if sess := s.sessions.Current(); sess != nil {
		ownID = sess.UserID
	}

	s.mu.Lock()
	s.reviews = reviews
	s.state = StateLoaded
	delete(s.own, attractionID)
	if ownID != "" {
		for _, r := range reviews {
			if r.UserID == ownID {
				s.own[attractionID] = r
				break
			}
		}
	}
	s.mu.Unlock()

	s.hub.publish(EventReviewsUpdated)
	return nil
}

// AddOrUpdateReview submits the user's review for an attraction. If the
// own-review index already holds one, that exact record is patched in a
// single combined update; otherwise a new row is inserted with empty
// comment and images normalized to absence. Either way a successful write
// triggers a full refetch so the cache and the rating aggregate
// resynchronize with server truth.
func (s *ReviewStore) AddOrUpdateReview(ctx context.Context, attractionID, userID string, rating int, comment string, imageURLs []string) error {
	if err := types.ValidateRating(rating); err != nil {
		s.fail(err)
		return err
	}
	if err := types.ValidateID("attraction id", attractionID); err != nil {
		s.fail(err)
		return err
	}
	if err := types.ValidateID("user id", userID); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.lastErr = ""
	existing, hasOwn := s.own[attractionID]
	s.mu.Unlock()

	comment = strings.TrimSpace(comment)
	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}
	if len(imageURLs) == 0 {
		imageURLs = nil
	}

	var err error
	if hasOwn && existing.UserID == userID {
		err = s.exec.Do(ctx, reviewsKey, func(ctx context.Context) error {
			return s.gw.Update(ctx, reviewsTable,
				types.ReviewPatch{Rating: rating, Comment: commentPtr, ImageURLs: imageURLs},
				gateway.Eq("id", existing.ID),
				gateway.Eq("user_id", userID),
			)
		})
		mutationsTotal.WithLabelValues("review_update", resultLabel(err)).Inc()
	} else {
		err = s.exec.Do(ctx, reviewsKey, func(ctx context.Context) error {
			return s.gw.Insert(ctx, reviewsTable, types.NewReview{
				ID:           uuid.NewString(),
				AttractionID: attractionID,
				UserID:       userID,
				Rating:       rating,
				Comment:      commentPtr,
				ImageURLs:    imageURLs,
			})
		})
		mutationsTotal.WithLabelValues("review_add", resultLabel(err)).Inc()
	}
	if err != nil {
		s.fail(err)
		return err
	}

	// Accept the extra round trip for correctness over latency.
	return s.FetchReviews(ctx, attractionID)
}

// DeleteReview deletes the review constrained to the owning user, so a
// guessable identifier is not enough to remove someone else's review. On
// success the review leaves both the collection and the own-review index,
// and its uploaded images are removed best-effort.
func (s *ReviewStore) DeleteReview(ctx context.Context, reviewID, userID string) error {
	if err := types.ValidateID("review id", reviewID); err != nil {
		s.fail(err)
		return err
	}
	if err := types.ValidateID("user id", userID); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.lastErr = ""
	var images []string
	for _, r := range s.reviews {
		if r.ID == reviewID {
			images = r.ImageURLs
			break
		}
	}
	s.mu.Unlock()

	err := s.exec.Do(ctx, reviewsKey, func(ctx context.Context) error {
		return s.gw.Delete(ctx, reviewsTable,
			gateway.Eq("id", reviewID),
			gateway.Eq("user_id", userID),
		)
	})
	mutationsTotal.WithLabelValues("review_delete", resultLabel(err)).Inc()
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	for i, r := range s.reviews {
		if r.ID == reviewID {
			s.reviews = append(s.reviews[:i], s.reviews[i+1:]...)
			break
		}
	}
	for attractionID, r := range s.own {
		if r.ID == reviewID {
			delete(s.own, attractionID)
		}
	}
	s.mu.Unlock()

	s.removeImages(ctx, images)
	s.hub.publish(EventReviewsUpdated)
	return nil
}

// UploadReviewImage stores image bytes for the user and returns the public
// URL to reference from a review.
func (s *ReviewStore) UploadReviewImage(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	if err := types.ValidateID("user id", userID); err != nil {
		s.fail(err)
		return "", err
	}
	if len(data) == 0 {
		err := apierr.NewValidation("image data must not be empty")
		s.fail(err)
		return "", err
	}

	path := userID + "/" + uuid.NewString() + extensionFor(contentType)
	if err := s.gw.Upload(ctx, reviewImagesBucket, path, data, contentType); err != nil {
		s.fail(err)
		return "", err
	}
	return s.gw.PublicURL(reviewImagesBucket, path), nil
}

// UserHasReviewed is a local-only read of the own-review index.
func (s *ReviewStore) UserHasReviewed(attractionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.own[attractionID]
	return ok
}

// UserReview returns the caller's own review for the attraction, or nil.
func (s *ReviewStore) UserReview(attractionID string) *types.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.own[attractionID]
	if !ok {
		return nil
	}
	snapshot := r
	return &snapshot
}

// Reviews returns a snapshot of the cached collection.
func (s *ReviewStore) Reviews() []types.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

// AttractionID returns the attraction the collection currently belongs to.
func (s *ReviewStore) AttractionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attractionID
}

// State returns the collection lifecycle state.
func (s *ReviewStore) State() CollectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the message of the last failed operation, or "".
func (s *ReviewStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ------------------------- internals -------------------------

// decodeReviews decodes rows individually. A row with a missing identifier
// or an out-of-range rating is dropped; one corrupt row must not blank the
// entire list.
func (s *ReviewStore) decodeReviews(rows []json.RawMessage) []types.Review {
	out := make([]types.Review, 0, len(rows))
	for _, raw := range rows {
		var row reviewRow
		if err := json.Unmarshal(raw, &row); err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed review row")
			continue
		}
		if row.ID == "" || row.AttractionID == "" || types.ValidateRating(row.Rating) != nil {
			s.log.Warn().Str("review_id", row.ID).Msg("skipping invalid review row")
			continue
		}
		r := row.Review
		if row.Author != nil {
			r.AuthorName = row.Author.DisplayName
		}
		out = append(out, r)
	}
	return out
}

// removeImages deletes a review's uploaded objects. Failures are logged and
// swallowed: the review itself is already gone and orphaned objects are
// harmless.
func (s *ReviewStore) removeImages(ctx context.Context, urls []string) {
	prefix := s.gw.PublicURL(reviewImagesBucket, "")
	var paths []string
	for _, u := range urls {
		if strings.HasPrefix(u, prefix) {
			paths = append(paths, strings.TrimPrefix(u, prefix))
		}
	}
	if len(paths) == 0 {
		return
	}
	if err := s.gw.Remove(ctx, reviewImagesBucket, paths); err != nil {
		s.log.Warn().Err(err).Msg("failed to remove review images")
	}
}

func (s *ReviewStore) fail(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.log.Debug().Err(err).Msg("review store operation failed")
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
