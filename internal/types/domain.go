package types

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// Session is the authenticated identity state for the current device/user.
// Owned exclusively by the session monitor; read-only everywhere else.
type Session struct {
	Token       string
	UserID      string
	Email       string
	DisplayName string
}

// Attraction is a point of interest. Read-only cache entries from the
// client's perspective.
type Attraction struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
	Address     string     `json:"address,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	ImageURLs   []string   `json:"image_urls,omitempty"`
	PriceTier   *int       `json:"price_tier,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// FavoriteEdge is a user-to-attraction bookmark. At most one edge per
// (user, attraction) pair exists at any time.
type FavoriteEdge struct {
	UserID       string    `json:"user_id"`
	AttractionID string    `json:"attraction_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Review is one user's review of one attraction. AuthorName is denormalized
// from a join at fetch time and never written back.
type Review struct {
	ID           string    `json:"id"`
	AttractionID string    `json:"attraction_id"`
	UserID       string    `json:"user_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	ImageURLs    []string  `json:"image_urls,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	AuthorName   string    `json:"-"`
}

// RatingSummary is derived and non-authoritative: always recomputable from
// the review collection, never persisted remotely.
type RatingSummary struct {
	Average float64
	Counts  map[int]int // star value 1..5 -> count, every key present
}
