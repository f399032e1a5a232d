package oauth

import "golang.org/x/oauth2"

const (
	githubAuthURL  = "https://github.com/login/oauth/authorize"
	githubTokenURL = "https://github.com/login/oauth/access_token" //nolint:gosec // OAuth endpoint URL, not a credential
)

type githubProvider struct {
	spaceScopes
}

func (githubProvider) ID() string { return "github" }

func (githubProvider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: githubAuthURL, TokenURL: githubTokenURL}
}

func (githubProvider) AuthorizationParameters() []oauth2.AuthCodeOption {
	return nil
}
