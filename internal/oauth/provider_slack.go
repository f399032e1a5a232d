package oauth

import (
	"strings"

	"golang.org/x/oauth2"
)

const (
	slackAuthURL  = "https://slack.com/oauth/v2/authorize"
	slackTokenURL = "https://slack.com/api/oauth.v2.access" //nolint:gosec // OAuth endpoint URL, not a credential
)

type slackProvider struct{}

func (slackProvider) ID() string { return "slack" }

func (slackProvider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: slackAuthURL, TokenURL: slackTokenURL}
}

// Slack expects a comma separated scope list.
func (slackProvider) ScopeParameter(scopes []string) string {
	return strings.Join(scopes, ",")
}

func (slackProvider) AuthorizationParameters() []oauth2.AuthCodeOption {
	return nil
}
