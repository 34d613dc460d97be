// Package gateway issues outbound calls to the commerce API. It attaches
// bearer credentials to protected endpoints, normalizes every failure into a
// classified Error, and performs the single transactional credential refresh
// the session contract allows on an authorization failure.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/silstore/storefront/core/logger"
)

// CredentialSource supplies the bearer credential and the two session
// operations the gateway is allowed to trigger. The auth session manager
// implements it.
type CredentialSource interface {
	// AccessToken returns the current access credential, or "" when the
	// session is anonymous.
	AccessToken() string
	// Refresh exchanges the refresh credential for a new bundle.
	Refresh(ctx context.Context) error
	// ForceLogout clears all credentials after an unrecoverable
	// authorization failure.
	ForceLogout(ctx context.Context)
}

// Gateway is the single egress point for commerce API traffic.
type Gateway struct {
	baseURL        string
	client         *http.Client
	creds          CredentialSource
	publicPrefixes []string
	log            *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithPublicPrefixes replaces the default set of public path prefixes.
func WithPublicPrefixes(prefixes ...string) Option {
	return func(g *Gateway) {
		g.publicPrefixes = prefixes
	}
}

// defaultPublicPrefixes are the read-only surfaces that never carry a bearer
// credential: catalog, categories, and anonymous order lookup.
var defaultPublicPrefixes = []string{"/products/", "/categories/", "/orders/"}

// New creates a gateway for the given API origin. creds may be nil for a
// purely anonymous client.
func New(baseURL string, creds CredentialSource, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{Timeout: 30 * time.Second},
		creds:          creds,
		publicPrefixes: defaultPublicPrefixes,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends a JSON request and returns the raw response body. A nil body sends
// no payload.
func (g *Gateway) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("encode request: %v", err)}
		}
	}

	build := func() (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	return g.send(ctx, path, build)
}

// DoJSON sends a JSON request and decodes the response body into dst. dst may
// be nil when the response body is irrelevant.
func (g *Gateway) DoJSON(ctx context.Context, method, path string, body, dst any) error {
	raw, err := g.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if dst == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Kind: KindNetwork, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// DoMultipart sends a request with a caller-built body. The default JSON
// content type is suppressed: when contentType is empty no header is set at
// all, so the transport can negotiate the multipart boundary itself.
func (g *Gateway) DoMultipart(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req, nil
	}
	return g.send(ctx, path, build)
}

// send runs the request with bearer attachment and the one-shot
// refresh-and-retry on 401.
func (g *Gateway) send(ctx context.Context, path string, build func() (*http.Request, error)) ([]byte, error) {
	protected := !g.isPublic(path)

	body, status, err := g.roundTrip(build, protected)
	if err != nil {
		return nil, err
	}
	if status != http.StatusUnauthorized || !protected {
		return g.classify(body, status, path)
	}

	// One transactional refresh, one retry. A second 401 or a failed refresh
	// escalates to a session-wide logout.
	if g.creds == nil {
		return nil, g.loginRequired(ctx, path)
	}
	if err := g.creds.Refresh(ctx); err != nil {
		g.log.Warn("credential refresh failed", logger.Component("gateway"), logger.Error(err))
		return nil, g.loginRequired(ctx, path)
	}

	body, status, err = g.roundTrip(build, protected)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, g.loginRequired(ctx, path)
	}
	return g.classify(body, status, path)
}

func (g *Gateway) loginRequired(ctx context.Context, path string) error {
	if g.creds != nil {
		g.creds.ForceLogout(ctx)
	}
	g.log.Warn("authorization exhausted, login required",
		logger.Component("gateway"), logger.Path(path))
	return &Error{
		Kind:    KindAuthorization,
		Status:  http.StatusUnauthorized,
		Message: "session expired, please sign in again",
	}
}

// roundTrip executes one attempt and returns the body and status. Transport
// failures come back as a classified network Error.
func (g *Gateway) roundTrip(build func() (*http.Request, error), protected bool) ([]byte, int, error) {
	req, err := build()
	if err != nil {
		return nil, 0, &Error{Kind: KindNetwork, Message: fmt.Sprintf("build request: %v", err)}
	}

	if protected {
		if token := g.accessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, &Error{Kind: KindNetwork, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{Kind: KindNetwork, Message: fmt.Sprintf("read response: %v", err)}
	}
	return body, resp.StatusCode, nil
}

func (g *Gateway) accessToken() string {
	if g.creds == nil {
		return ""
	}
	return g.creds.AccessToken()
}

// classify turns a completed response into a result or a normalized Error.
func (g *Gateway) classify(body []byte, status int, path string) ([]byte, error) {
	if status >= 200 && status < 300 {
		return body, nil
	}

	msg, structured := extractMessage(body, status)
	kind := KindNetwork
	if structured && status >= 400 && status < 500 && status != http.StatusUnauthorized {
		kind = KindValidation
	}

	g.log.Debug("request rejected",
		logger.Component("gateway"), logger.Path(path), logger.StatusCode(status))
	return nil, &Error{Kind: kind, Status: status, Message: msg}
}

// extractMessage pulls a human-readable message from an error body using the
// fixed priority order the backend's serializers follow: error, detail,
// message. The boolean reports whether a structured key matched; a body
// without one (an HTML interstitial, a proxy page) falls back to the
// transport status text and stays a network-class failure.
func extractMessage(body []byte, status int) (string, bool) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if v, ok := parsed[key].(string); ok && v != "" {
				return v, true
			}
		}
	}
	return http.StatusText(status), false
}

func (g *Gateway) isPublic(path string) bool {
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
