package wander

import (
	"errors"

	apierr "github.com/wanderapp/wander-go/internal/errors"
)

var (
	errEmptyBaseURL = errors.New("baseURL cannot be empty")
	errEmptyAPIKey  = errors.New("apiKey cannot be empty")
)

// IsTransportError reports whether err was caused by a network failure or
// a server-side error worth retrying.
func IsTransportError(err error) bool { return apierr.Is(err, apierr.Transport) }

// IsAuthError reports whether err was an authentication or authorization
// rejection (invalid credentials, expired session, duplicate registration).
func IsAuthError(err error) bool { return apierr.Is(err, apierr.Auth) }

// IsValidationError reports whether err was raised before any network call
// because a precondition failed (empty field, rating out of range).
func IsValidationError(err error) bool { return apierr.Is(err, apierr.Validation) }

// IsNotFound reports whether err refers to an absent attraction or review.
func IsNotFound(err error) bool { return apierr.Is(err, apierr.NotFound) }
