package wander

import (
	"sync"

	"github.com/wanderapp/wander-go/internal/types"
)

// Rating derivation is pure: no network access, no identity beyond the
// input collection. Recomputation is cheap enough to run on every
// review-collection change.

// AverageRating returns the arithmetic mean rating over reviews.
// An empty collection averages to 0.0, never NaN.
func AverageRating(reviews []types.Review) float64 {
	if len(reviews) == 0 {
		return 0.0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// Distribution returns the count per star value. Every key 1..5 is present
// even when its count is zero. Out-of-range ratings are ignored; they are
// already filtered out at decode time.
func Distribution(reviews []types.Review) map[int]int {
	dist := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for _, r := range reviews {
		if r.Rating >= 1 && r.Rating <= 5 {
			dist[r.Rating]++
		}
	}
	return dist
}

// Summarize bundles the mean and the distribution for one collection.
func Summarize(reviews []types.Review) types.RatingSummary {
	return types.RatingSummary{
		Average: AverageRating(reviews),
		Counts:  Distribution(reviews),
	}
}

// RatingIndex is the incremental mode: ratings grouped by attraction after
// a bulk fetch across many attractions, with per-attraction means cached
// until the next grouping pass.
type RatingIndex struct {
	mu           sync.RWMutex
	byAttraction map[string][]int
	means        map[string]float64
}

// NewRatingIndex returns an empty index.
func NewRatingIndex() *RatingIndex {
	return &RatingIndex{
		byAttraction: make(map[string][]int),
		means:        make(map[string]float64),
	}
}

// Group replaces the index contents with reviews grouped by attraction
// identifier and invalidates all cached means.
func (x *RatingIndex) Group(reviews []types.Review) {
	grouped := make(map[string][]int)
	for _, r := range reviews {
		grouped[r.AttractionID] = append(grouped[r.AttractionID], r.Rating)
	}
	x.mu.Lock()
	x.byAttraction = grouped
	x.means = make(map[string]float64, len(grouped))
	x.mu.Unlock()
}

// AverageFor returns the mean rating for one attraction, 0.0 when it has
// no ratings. The result is cached until the next Group pass.
func (x *RatingIndex) AverageFor(attractionID string) float64 {
	x.mu.RLock()
	if mean, ok := x.means[attractionID]; ok {
		x.mu.RUnlock()
		return mean
	}
	ratings := x.byAttraction[attractionID]
	x.mu.RUnlock()

	if len(ratings) == 0 {
		return 0.0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))

	x.mu.Lock()
	x.means[attractionID] = mean
	x.mu.Unlock()
	return mean
}
