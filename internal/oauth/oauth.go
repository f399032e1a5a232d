// Package oauth implements the authorization-code flow Flowgent uses to connect
// third-party credentials: per-provider authorization URLs, signed state and
// token exchange.
//
// The state parameter is padded base64url (the URL-safe alphabet of RFC 4648
// section 5) over a JSON object carrying userId, timestamp, nonce and sig.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/integrations"
)

var (
	ErrInvalidState  = errors.New("invalid oauth state")
	ErrStateExpired  = errors.New("oauth state expired")
	ErrTokenExchange = errors.New("failed to exchange token")
)

const exchangeTimeout = 15 * time.Second

// Token is the result of a successful code exchange.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresAt    *time.Time
}

type connection struct {
	provider     Provider
	clientID     string
	clientSecret string
	scopes       []string
	endpoint     oauth2.Endpoint
}

// Manager builds authorization URLs and exchanges codes for every provider that
// is both registered as an oauth2 integration and configured with client
// credentials.
type Manager struct {
	connections map[string]connection
	httpClient  *http.Client
}

type Option func(*Manager)

// WithHTTPClient sets the client used for token exchange requests.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

func NewManager(registry *integrations.Registry, providers map[string]config.OAuthProviderConfig, opts ...Option) *Manager {
	m := &Manager{
		connections: make(map[string]connection),
		httpClient:  &http.Client{Timeout: exchangeTimeout},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.httpClient = withJSONAccept(m.httpClient)

	for id, cfg := range providers {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			continue
		}

		def, err := registry.LookupOAuth(id)
		if err != nil {
			log.Warn().Str("provider", id).Msg("Ignoring OAuth configuration for unregistered provider")
			continue
		}

		provider, ok := providerFor(id)
		if !ok {
			log.Warn().Str("provider", id).Msg("No OAuth implementation for provider")
			continue
		}

		scopes := def.Scopes
		if len(cfg.Scopes) > 0 {
			scopes = cfg.Scopes
		}

		endpoint := provider.Endpoint()
		if cfg.AuthURL != "" {
			endpoint.AuthURL = cfg.AuthURL
		}
		if cfg.TokenURL != "" {
			endpoint.TokenURL = cfg.TokenURL
		}
		endpoint.AuthStyle = oauth2.AuthStyleInParams

		m.connections[id] = connection{
			provider:     provider,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			scopes:       scopes,
			endpoint:     endpoint,
		}
	}

	return m
}

// Providers returns the ids of every provider ready to connect, sorted.
func (m *Manager) Providers() []string {
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Available reports whether id can be connected.
func (m *Manager) Available(id string) bool {
	_, ok := m.connections[id]
	return ok
}

// AuthCodeURL returns the provider authorization URL the browser is sent to.
func (m *Manager) AuthCodeURL(providerID, redirectURI, state string) (string, error) {
	conn, err := m.connection(providerID)
	if err != nil {
		return "", err
	}

	opts := conn.provider.AuthorizationParameters()
	if len(conn.scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", conn.provider.ScopeParameter(conn.scopes)))
	}

	return conn.config(redirectURI).AuthCodeURL(state, opts...), nil
}

// Exchange trades an authorization code for tokens. Failures wrap ErrTokenExchange;
// the provider's response body is logged but never returned.
func (m *Manager) Exchange(ctx context.Context, providerID, redirectURI, code string) (*Token, error) {
	conn, err := m.connection(providerID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tok, err := conn.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		event := log.Error().Err(err).Str("provider", providerID)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			event = event.Int("status", re.Response.StatusCode).Bytes("body", re.Body)
		}
		event.Msg("OAuth token exchange failed")
		return nil, fmt.Errorf("%w: %s", ErrTokenExchange, providerID)
	}

	token := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		token.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		token.ExpiresAt = &expiry
	}

	return token, nil
}

func (m *Manager) connection(id string) (connection, error) {
	conn, ok := m.connections[id]
	if !ok {
		return connection{}, &integrations.UnknownProviderError{Provider: id}
	}
	return conn, nil
}

func (c connection) config(redirectURI string) *oauth2.Config {
	// Scopes are left empty so each provider controls how the scope parameter is joined.
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     c.endpoint,
		RedirectURL:  redirectURI,
	}
}

// RedirectURI is the callback URL registered with every provider. Connect and
// callback both derive it here so the two values always match.
func RedirectURI(origin, providerID string) string {
	return origin + "/api/oauth/" + providerID + "/callback"
}

type acceptJSON struct {
	base http.RoundTripper
}

func (t acceptJSON) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

func withJSONAccept(client *http.Client) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = acceptJSON{base: base}
	return &wrapped
}
