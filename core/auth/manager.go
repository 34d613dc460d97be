// Package auth owns the authenticated identity session: authorization-code
// login against an OpenID Connect provider, proactive credential renewal on
// a timer, and safe degradation when renewal fails. Commerce stores subscribe
// to its authentication transitions to know when to reconcile local state.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/silstore/storefront/core/logger"
	"github.com/silstore/storefront/core/statecache"
	"github.com/silstore/storefront/pkg/claims"
)

const (
	// sessionKey is the statecache record holding the persisted session.
	// Keyed separately from commerce state so clearing one never disturbs
	// the other.
	sessionKey = "session"
	// stateKey holds the transient anti-forgery state between BeginLogin and
	// the provider's callback.
	stateKey = "oauth_state"
)

// idTokenVerifier abstracts go-oidc's verifier so constructions without
// discovery can run with unverified claim decoding instead.
type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Manager is the auth session manager. All exported methods are safe for
// concurrent use; transition callbacks run outside the manager lock.
type Manager struct {
	mu       sync.Mutex
	oauth    oauth2.Config
	verifier idTokenVerifier
	eps      Endpoints
	cache    statecache.Store
	session  Session
	timer    *time.Timer
	subs     []func(Transition)

	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time
}

// New discovers the provider's endpoints from the realm issuer and returns a
// manager that verifies ID token signatures.
func New(ctx context.Context, cfg Config, cache statecache.Store, opts ...Option) (*Manager, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer())
	if err != nil {
		return nil, fmt.Errorf("auth: provider discovery: %w", err)
	}

	var discovered struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	// Best effort; logout degrades to local-only without it.
	_ = provider.Claims(&discovered)

	eps := Endpoints{
		AuthURL:       provider.Endpoint().AuthURL,
		TokenURL:      provider.Endpoint().TokenURL,
		UserInfoURL:   provider.UserInfoEndpoint(),
		EndSessionURL: discovered.EndSessionEndpoint,
	}

	m := newManager(cfg, eps, cache, opts...)
	m.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return m, nil
}

// NewWithEndpoints skips discovery and token signature verification; identity
// claims are decoded unverified. Meant for tests and development providers.
func NewWithEndpoints(cfg Config, eps Endpoints, cache statecache.Store, opts ...Option) *Manager {
	return newManager(cfg, eps, cache, opts...)
}

func newManager(cfg Config, eps Endpoints, cache statecache.Store, opts ...Option) *Manager {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	m := &Manager{
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  eps.AuthURL,
				TokenURL: eps.TokenURL,
			},
			Scopes: scopes,
		},
		eps:        eps,
		cache:      cache,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a callback for authentication transitions. Commerce
// stores register at construction time; there is no unsubscribe because
// subscribers share the manager's lifetime.
func (m *Manager) Subscribe(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Session returns a copy of the current session state.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// AccessToken implements gateway.CredentialSource.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Credentials.AccessToken
}

// BeginLogin generates a random anti-forgery state token, persists it for the
// redirect round trip, and returns the provider authorization URL to send the
// user agent to.
func (m *Manager) BeginLogin(ctx context.Context) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrStateGeneration, err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	if err := statecache.SaveRecord(ctx, m.cache, stateKey, state); err != nil {
		return "", fmt.Errorf("auth: persist state: %w", err)
	}

	return m.oauth.AuthCodeURL(state), nil
}

// CompleteLogin validates the callback state, exchanges the authorization
// code for a credential bundle, projects the user from the identity claims,
// and publishes the SignedIn transition. A state mismatch rejects the login.
func (m *Manager) CompleteLogin(ctx context.Context, code, state string) error {
	var stored string
	if err := statecache.LoadRecord(ctx, m.cache, stateKey, &stored); err != nil {
		return ErrStateMismatch
	}
	// Single use, match or not.
	_ = m.cache.Delete(ctx, stateKey)

	if state == "" || state != stored {
		m.log.Warn("rejected login callback with mismatched state", logger.Component("auth"))
		return ErrStateMismatch
	}

	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return errors.Join(ErrExchangeFailed, err)
	}

	user, err := m.projectUser(ctx, token)
	if err != nil {
		return errors.Join(ErrExchangeFailed, err)
	}

	return m.adoptBundle(ctx, user, token, true)
}

// Refresh exchanges the refresh credential for a new bundle. On failure with
// a certainly-expired access credential the session is logged out and
// ErrCredentialExpired returned; otherwise the failure is transient and the
// session stays intact for a later retry.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refreshToken := m.session.Credentials.RefreshToken
	user := m.session.User
	expiresAt := m.session.Credentials.ExpiresAt
	m.mu.Unlock()

	if refreshToken == "" {
		return ErrNotAuthenticated
	}

	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		if !expiresAt.IsZero() && m.now().After(expiresAt) {
			m.log.Warn("refresh failed on expired credential, logging out",
				logger.Component("auth"), logger.Error(err))
			m.ForceLogout(ctx)
			return ErrCredentialExpired
		}
		return errors.Join(ErrRefreshFailed, err)
	}

	// Providers may omit a rotated refresh token; keep the previous one.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return m.adoptBundle(ctx, user, token, false)
}

// Logout notifies the provider best-effort, then destroys the local session
// regardless of provider reachability.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	refreshToken := m.session.Credentials.RefreshToken
	m.mu.Unlock()

	if m.eps.EndSessionURL != "" && refreshToken != "" {
		form := url.Values{
			"client_id":     {m.oauth.ClientID},
			"refresh_token": {refreshToken},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.eps.EndSessionURL,
			strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if resp, err := m.httpClient.Do(req); err != nil {
				m.log.Warn("provider logout failed, proceeding locally",
					logger.Component("auth"), logger.Error(err))
			} else {
				resp.Body.Close()
			}
		}
	}

	m.clearSession(ctx)
}

// ForceLogout implements gateway.CredentialSource: local teardown without the
// provider round trip, used after an unrecoverable authorization failure.
func (m *Manager) ForceLogout(ctx context.Context) {
	m.clearSession(ctx)
}

// CheckStatus rehydrates the session from the boot cache at process start.
// Persisted credentials are re-validated: the access token is decoded, or the
// user-info endpoint consulted when decoding fails. Any failure clears the
// cached credentials and leaves the session unauthenticated; the bootstrap
// never sees an error.
func (m *Manager) CheckStatus(ctx context.Context) {
	var persisted Session
	if err := statecache.LoadRecord(ctx, m.cache, sessionKey, &persisted); err != nil {
		if !errors.Is(err, statecache.ErrNotFound) {
			m.log.Warn("discarding unreadable session record",
				logger.Component("auth"), logger.Error(err))
			_ = m.cache.Delete(ctx, sessionKey)
		}
		return
	}
	if persisted.Credentials.AccessToken == "" {
		_ = m.cache.Delete(ctx, sessionKey)
		return
	}

	user, expiresAt, ok := m.revalidate(ctx, persisted)
	if !ok {
		m.log.Info("persisted session invalid, starting anonymous", logger.Component("auth"))
		_ = m.cache.Delete(ctx, sessionKey)
		return
	}

	m.mu.Lock()
	m.session = Session{
		User: user,
		Credentials: Credentials{
			AccessToken:  persisted.Credentials.AccessToken,
			RefreshToken: persisted.Credentials.RefreshToken,
			TokenType:    persisted.Credentials.TokenType,
			ExpiresAt:    expiresAt,
		},
		Authenticated: true,
	}
	remaining := renewalMax
	if !expiresAt.IsZero() {
		remaining = expiresAt.Sub(m.now())
	}
	m.scheduleLocked(renewalDelay(remaining))
	m.mu.Unlock()

	m.notify(SignedIn)
}

// revalidate decodes the persisted access credential, falling back to a
// user-info lookup, and reports whether the session is still usable.
func (m *Manager) revalidate(ctx context.Context, persisted Session) (User, time.Time, bool) {
	id, err := claims.DecodeIdentity(persisted.Credentials.AccessToken)
	if err != nil {
		user, lookupErr := m.fetchUserInfo(ctx, persisted.Credentials.AccessToken)
		if lookupErr != nil {
			return User{}, time.Time{}, false
		}
		return user, persisted.Credentials.ExpiresAt, true
	}

	expiresAt := id.Expiry()
	if !expiresAt.IsZero() && m.now().After(expiresAt) {
		return User{}, time.Time{}, false
	}
	return userFromIdentity(id), expiresAt, true
}

// fetchUserInfo queries the provider's user-info endpoint with the given
// access credential.
func (m *Manager) fetchUserInfo(ctx context.Context, accessToken string) (User, error) {
	if m.eps.UserInfoURL == "" {
		return User{}, errors.New("auth: no user-info endpoint")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.eps.UserInfoURL, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("auth: user-info returned %d", resp.StatusCode)
	}

	var info struct {
		Subject           string `json:"sub"`
		Email             string `json:"email"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return User{}, err
	}

	return User{
		ID:       info.Subject,
		Email:    info.Email,
		Name:     info.Name,
		Username: info.PreferredUsername,
	}, nil
}

// projectUser derives the user projection from the exchanged token: the ID
// token's claims when one was issued, the access token's otherwise.
func (m *Manager) projectUser(ctx context.Context, token *oauth2.Token) (User, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		raw = token.AccessToken
	}

	if m.verifier != nil {
		if rawID, ok := token.Extra("id_token").(string); ok && rawID != "" {
			idToken, err := m.verifier.Verify(ctx, rawID)
			if err != nil {
				return User{}, fmt.Errorf("auth: verify id token: %w", err)
			}
			var c claims.Identity
			if err := idToken.Claims(&c); err != nil {
				return User{}, fmt.Errorf("auth: parse id token claims: %w", err)
			}
			return userFromIdentity(c), nil
		}
	}

	id, err := claims.DecodeIdentity(raw)
	if err != nil {
		return User{}, err
	}
	return userFromIdentity(id), nil
}

// adoptBundle installs a new credential bundle: persist, republish, schedule
// renewal. An already-expired bundle is rejected before installation so a
// never-signed-in caller sees no spurious transitions.
func (m *Manager) adoptBundle(ctx context.Context, user User, token *oauth2.Token, isLogin bool) error {
	expiresAt := bundleExpiry(token)
	remaining := renewalMax
	if !expiresAt.IsZero() {
		remaining = expiresAt.Sub(m.now())
	}
	if remaining <= 0 {
		m.log.Warn("received already-expired credential bundle", logger.Component("auth"))
		m.clearSession(ctx)
		return ErrCredentialExpired
	}

	m.mu.Lock()
	wasAuthenticated := m.session.Authenticated
	m.session = Session{
		User: user,
		Credentials: Credentials{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			ExpiresAt:    expiresAt,
		},
		Authenticated: true,
	}

	if err := statecache.SaveRecord(ctx, m.cache, sessionKey, m.session); err != nil {
		m.log.Warn("failed to persist session", logger.Component("auth"), logger.Error(err))
	}
	m.scheduleLocked(renewalDelay(remaining))
	m.mu.Unlock()

	if isLogin && !wasAuthenticated {
		m.notify(SignedIn)
	}
	return nil
}

// clearSession destroys the local session and publishes SignedOut if a
// session existed.
func (m *Manager) clearSession(ctx context.Context) {
	m.mu.Lock()
	hadSession := m.session.Authenticated || m.session.Credentials.AccessToken != ""
	m.session = Session{}
	m.cancelTimerLocked()
	m.mu.Unlock()

	if err := m.cache.Delete(ctx, sessionKey); err != nil {
		m.log.Warn("failed to clear persisted session", logger.Component("auth"), logger.Error(err))
	}

	if hadSession {
		m.notify(SignedOut)
	}
}

// notify publishes a transition to all subscribers outside the manager lock.
func (m *Manager) notify(t Transition) {
	m.mu.Lock()
	subs := make([]func(Transition), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// bundleExpiry resolves the access credential expiry, preferring the token's
// own exp claim over the transport-level lifetime.
func bundleExpiry(token *oauth2.Token) time.Time {
	if id, err := claims.DecodeIdentity(token.AccessToken); err == nil && !id.Expiry().IsZero() {
		return id.Expiry()
	}
	return token.Expiry
}
