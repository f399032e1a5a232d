package oauth

import "golang.org/x/oauth2"

const (
	notionAuthURL  = "https://api.notion.com/v1/oauth/authorize"
	notionTokenURL = "https://api.notion.com/v1/oauth/token" //nolint:gosec // OAuth endpoint URL, not a credential
)

type notionProvider struct {
	spaceScopes
}

func (notionProvider) ID() string { return "notion" }

func (notionProvider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: notionAuthURL, TokenURL: notionTokenURL}
}

func (notionProvider) AuthorizationParameters() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("owner", "user")}
}
