package oauth

import "golang.org/x/oauth2"

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token" //nolint:gosec // OAuth endpoint URL, not a credential
)

type googleProvider struct {
	spaceScopes
}

func (googleProvider) ID() string { return "google" }

func (googleProvider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL}
}

// Google only issues a refresh token when offline access is requested and the
// consent screen is shown again.
func (googleProvider) AuthorizationParameters() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	}
}
