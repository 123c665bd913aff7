package zoho

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the credential record is missing a
// connection field or no refresh token has been obtained yet.
var ErrNotConfigured = errors.New("zoho connection is not configured")

// AuthError reports a rejected token exchange at the accounts endpoint.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("zoho token exchange rejected (status %d): %s", e.Status, e.Body)
}

// FetchKind classifies fatal fetch failures.
type FetchKind string

const (
	// FetchUnreachable covers network-level failures (timeout,
	// connection reset). No automatic retry beyond the single
	// auth-retry; retry storms against a rate-limited remote are worse
	// than a failed run.
	FetchUnreachable FetchKind = "unreachable"

	// FetchRemoteRejected covers any non-auth non-2xx response.
	FetchRemoteRejected FetchKind = "remote_rejected"

	// FetchAuthExpired means a request got 401 twice: once before and
	// once after a forced token refresh.
	FetchAuthExpired FetchKind = "auth_expired"
)

// FetchError is fatal for a sync run. Per-record failures never surface
// as a FetchError; they are logged and dropped by the caller.
type FetchError struct {
	Kind   FetchKind
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchUnreachable:
		return fmt.Sprintf("zoho api unreachable: %v", e.Err)
	case FetchAuthExpired:
		return "zoho access token expired and refresh did not recover it"
	default:
		return fmt.Sprintf("zoho api rejected request (status %d): %s", e.Status, e.Body)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
