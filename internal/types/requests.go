package types

// ------------------------------
// Mutation payloads
// ------------------------------

// NewFavorite is the insert row for a favorite edge.
type NewFavorite struct {
	UserID       string `json:"user_id"`
	AttractionID string `json:"attraction_id"`
}

// NewReview is the insert row for a review. Comment and ImageURLs are
// pointers/nil so "no content" is stored as absence, not empty values.
type NewReview struct {
	ID           string   `json:"id"`
	AttractionID string   `json:"attraction_id"`
	UserID       string   `json:"user_id"`
	Rating       int      `json:"rating"`
	Comment      *string  `json:"comment,omitempty"`
	ImageURLs    []string `json:"image_urls,omitempty"`
}

// ReviewPatch updates an existing review in place. Comment and ImageURLs
// are serialized even when nil so an emptied field is cleared remotely
// rather than left at its old value.
type ReviewPatch struct {
	Rating    int      `json:"rating"`
	Comment   *string  `json:"comment"`
	ImageURLs []string `json:"image_urls"`
}
