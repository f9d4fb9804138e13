package types

import (
	"strings"

	"github.com/wanderapp/wander-go/internal/errors"
)

// NormalizeEmail lowercases and trims an email address before it is sent
// to the identity provider.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials rejects empty email or password before any network
// call is attempted.
func ValidateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.NewValidation("email must not be empty")
	}
	if password == "" {
		return errors.NewValidation("password must not be empty")
	}
	return nil
}

// ValidateRating rejects ratings outside {1,2,3,4,5}. A zero (unselected)
// rating is never submitted.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return errors.NewValidation("rating must be between 1 and 5")
	}
	return nil
}

// ValidateID rejects an empty identifier for the named field.
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidation(field + " must not be empty")
	}
	return nil
}
