package wander

import "github.com/wanderapp/wander-go/internal/types"

// Public type aliases so SDK consumers can import only the wander package.
type (
	// Domain entities
	Session       = types.Session
	Attraction    = types.Attraction
	FavoriteEdge  = types.FavoriteEdge
	Review        = types.Review
	RatingSummary = types.RatingSummary
)
