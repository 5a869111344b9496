package apperr

import "errors"

// Sentinel errors shared across services, clients and the HTTP layer.
// Handlers map these to status codes in one place; anything that wraps an
// external backend's failure must wrap one of these instead of leaking the
// backend's payload to callers.
var (
	// ErrInvalidInput marks a missing or malformed required field. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is the only credential failure callers ever see,
	// regardless of which scheme rejected them or whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound covers absent content, products and customers. Often a
	// valid business state ("not purchasable yet") rather than a bug.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable marks a transport failure or a 5xx from an
	// external backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
