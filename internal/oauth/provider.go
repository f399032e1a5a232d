package oauth

import (
	"strings"

	"golang.org/x/oauth2"
)

// Provider captures how one authorization server differs from plain OAuth2.
type Provider interface {
	ID() string
	Endpoint() oauth2.Endpoint
	// ScopeParameter encodes scopes for the authorization URL.
	ScopeParameter(scopes []string) string
	// AuthorizationParameters returns extra query parameters for the authorization URL.
	AuthorizationParameters() []oauth2.AuthCodeOption
}

var providers = map[string]Provider{
	"slack":  slackProvider{},
	"google": googleProvider{},
	"github": githubProvider{},
	"notion": notionProvider{},
}

func providerFor(id string) (Provider, bool) {
	p, ok := providers[id]
	return p, ok
}

// spaceScopes is the encoding RFC 6749 specifies and most providers follow.
type spaceScopes struct{}

func (spaceScopes) ScopeParameter(scopes []string) string {
	return strings.Join(scopes, " ")
}
