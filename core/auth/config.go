package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config identifies the client at the OpenID Connect provider.
type Config struct {
	// ProviderURL is the identity provider origin, e.g. https://id.example.com.
	ProviderURL string
	// Realm is the provider tenant the storefront belongs to.
	Realm string
	// ClientID is the registered public client identifier.
	ClientID string
	// RedirectURL is where the provider sends the user agent back after login.
	RedirectURL string
	// Scopes defaults to openid, email, profile when empty.
	Scopes []string
}

// Issuer returns the realm issuer URL used for discovery and token audience.
func (c Config) Issuer() string {
	return strings.TrimRight(c.ProviderURL, "/") + "/realms/" + c.Realm
}

// Endpoints names the provider URLs directly, for constructions that skip
// discovery.
type Endpoints struct {
	AuthURL       string
	TokenURL      string
	UserInfoURL   string
	EndSessionURL string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithHTTPClient replaces the HTTP client used for user-info and end-session
// calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithClock overrides the time source. Tests use it to pin expiry math.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
