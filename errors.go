package myq

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the myQ client.
// All errors are defined here for easy discovery and consistent organization.
var (
	// Authentication errors
	ErrNoCredentials      = errors.New("myq: no credentials configured (call Login first)")
	ErrNotAuthenticated   = errors.New("myq: not authenticated")
	ErrInvalidCredentials = errors.New("myq: invalid credentials (login rejected)")

	// ErrAuthAnomaly indicates the identity service returned something the
	// client did not expect: a missing verification token, too few session
	// cookies, or a redirect without an authorization code. Retrying will
	// not fix a contract mismatch, so this is never retried.
	ErrAuthAnomaly = errors.New("myq: unexpected response from identity service")

	// Request errors
	ErrDeviceUnavailable = errors.New("myq: device unavailable (forbidden)")
	ErrRateLimited       = errors.New("myq: rate limited (too many requests)")

	// Directory errors
	ErrNoAccounts     = errors.New("myq: no accounts associated with this session")
	ErrDeviceNotFound = errors.New("myq: device not found")
	ErrStaleSnapshot  = errors.New("myq: device snapshot is stale (call RefreshDevices)")
	ErrEmptySerial    = errors.New("myq: serial number cannot be empty")
)

// APIError represents an unexpected error response from the myQ API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("myq: API error %d: %s (body: %s)", e.StatusCode, e.Message, e.Body)
	}
	return fmt.Sprintf("myq: API error %d: %s", e.StatusCode, e.Message)
}

// transientError marks an outcome the request executor may retry: a
// server-side status, a rate limit, a transport failure, or a 400/401 that
// may be transient API trouble rather than genuinely bad credentials.
type transientError struct {
	kind string
	err  error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("myq: %s: %v", e.kind, e.err)
}

func (e *transientError) Unwrap() error { return e.err }

// IsInvalidCredentials returns true if the error indicates the login was
// rejected, likely due to a bad email or password.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsAuthAnomaly returns true if the error indicates the identity service
// returned an unexpected response shape, likely an API contract change.
func IsAuthAnomaly(err error) bool {
	return errors.Is(err, ErrAuthAnomaly)
}

// IsDeviceUnavailable returns true if the error indicates the device is
// unavailable or forbidden (HTTP 403). This outcome is terminal for the
// call but does not invalidate the session.
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsTransient returns true if the error was classified as retryable: a
// server-side status, a transport failure, or possible transient API
// trouble on a credentials endpoint.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
