package driven

import "errors"

// Sentinel errors shared by the store, the authority and its client. Callers
// match them with errors.Is; adapters wrap them with context.
var (
	// ErrInvalid indicates an origin that fails validation.
	ErrInvalid = errors.New("invalid origin")

	// ErrBadRequest indicates missing or malformed request fields.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates bad credentials or an invalid, expired or missing token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid token without the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates the origin is already on the allow-list.
	ErrConflict = errors.New("origin already allow-listed")

	// ErrNotFound indicates the origin is not on the allow-list.
	ErrNotFound = errors.New("origin not found")

	// ErrTransient indicates a network failure or 5xx response that may succeed on retry.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited indicates the authority refused the request due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
