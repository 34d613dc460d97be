package auth

import (
	"time"

	"github.com/silstore/storefront/pkg/claims"
)

// User is the identity projection decoded from the provider's token claims.
// It is derived, never independently fetched, unless decoding fails and the
// user-info endpoint has to fill in.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Credentials is the bundle issued by the identity provider's token endpoint.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresAt is the access credential expiry resolved at issue time, from
	// the token's exp claim when decodable and the issued lifetime otherwise.
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is the authenticated identity state. The invariant holds that
// Authenticated is true exactly when an access credential is present and not
// known-expired.
type Session struct {
	User          User        `json:"user"`
	Credentials   Credentials `json:"credentials"`
	Authenticated bool        `json:"authenticated"`
}

// Transition is an authentication-state change published to subscribers.
type Transition int

const (
	// SignedIn fires when a session becomes authenticated: after a completed
	// login or a successful boot-time rehydration.
	SignedIn Transition = iota + 1
	// SignedOut fires when the session is destroyed, whether by explicit
	// logout or by terminal refresh failure.
	SignedOut
)

func (t Transition) String() string {
	switch t {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	}
	return "unknown"
}

// userFromIdentity maps decoded token claims onto the user projection.
func userFromIdentity(id claims.Identity) User {
	return User{
		ID:       id.Subject,
		Email:    id.Email,
		Name:     id.Name,
		Username: id.PreferredUsername,
	}
}
