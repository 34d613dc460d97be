package gateway

import "errors"

// Kind classifies a gateway failure so call sites branch on taxonomy instead
// of transport-specific shapes.
type Kind int

const (
	// KindNetwork covers transport failures and non-2xx responses with no
	// actionable classification. Commerce stores fall back to local mutation
	// on this kind.
	KindNetwork Kind = iota
	// KindAuthorization is a 401 on a protected call after the single
	// refresh-and-retry has been exhausted.
	KindAuthorization
	// KindValidation is a structured 4xx rejection from the backend, e.g. a
	// refused coupon. Surfaced verbatim, no fallback.
	KindValidation
)

var (
	// ErrNetwork matches errors of KindNetwork.
	ErrNetwork = errors.New("gateway: network error")
	// ErrValidation matches errors of KindValidation.
	ErrValidation = errors.New("gateway: validation error")
	// ErrLoginRequired signals that credentials were cleared and the caller
	// must redirect the user to login. Matches errors of KindAuthorization.
	ErrLoginRequired = errors.New("gateway: login required")
)

// Error is the normalized failure shape every gateway call returns. The
// message is already human-readable; callers never inspect response bodies.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is maps kinds onto the package sentinels so errors.Is(err, ErrNetwork)
// works without exposing the concrete type at call sites.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrLoginRequired:
		return e.Kind == KindAuthorization
	}
	return false
}
