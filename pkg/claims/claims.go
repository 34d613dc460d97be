// Package claims decodes JSON Web Token payloads without verifying the
// signature. The identity provider already signed the tokens this package
// reads; signature verification of ID tokens is the verifier's job
// (go-oidc). This package exists for the cases where only the claim values
// matter: scheduling a renewal from the exp claim and projecting a user from
// an access token when no ID token was issued.
package claims

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrMalformedToken is returned when the token is not a three-part JWT.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidPayload is returned when the payload segment cannot be decoded.
	ErrInvalidPayload = errors.New("invalid token payload")
)

// Identity is the standard claim set the session manager projects a user from.
type Identity struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	ExpiresAt         int64  `json:"exp"`
	IssuedAt          int64  `json:"iat"`
}

// Expiry returns the exp claim as a time. The zero time means the token
// carries no expiry.
func (i Identity) Expiry() time.Time {
	if i.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(i.ExpiresAt, 0)
}

// Decode parses the payload segment of a JWT into dst without verifying the
// signature.
func Decode(token string, dst any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	return nil
}

// DecodeIdentity parses the standard identity claims from a JWT.
func DecodeIdentity(token string) (Identity, error) {
	var id Identity
	if err := Decode(token, &id); err != nil {
		return Identity{}, err
	}
	return id, nil
}
