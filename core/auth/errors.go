package auth

import "errors"

var (
	// ErrStateMismatch is returned when the anti-forgery state on the OIDC
	// callback does not match the value issued by BeginLogin. The login is
	// rejected outright rather than accepted with a warning.
	ErrStateMismatch = errors.New("auth: state parameter mismatch")
	// ErrExchangeFailed is returned when the authorization code could not be
	// exchanged for a credential bundle.
	ErrExchangeFailed = errors.New("auth: code exchange failed")
	// ErrRefreshFailed is returned when a refresh attempt failed but the
	// access credential is not yet known to be expired. The caller may retry.
	ErrRefreshFailed = errors.New("auth: credential refresh failed")
	// ErrCredentialExpired is returned when a refresh failed against a
	// certainly-expired credential. The session has already been logged out.
	ErrCredentialExpired = errors.New("auth: credential expired")
	// ErrNotAuthenticated is returned when an operation requires an active
	// session and none exists.
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	// ErrStateGeneration is returned when the anti-forgery state token could
	// not be generated.
	ErrStateGeneration = errors.New("auth: failed to generate state token")
)
