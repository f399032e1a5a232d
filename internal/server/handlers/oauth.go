package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/credentials"
	"github.com/flowgent/flowgent/internal/integrations"
	"github.com/flowgent/flowgent/internal/metrics"
	"github.com/flowgent/flowgent/internal/oauth"
	"github.com/flowgent/flowgent/internal/requestctx"
)

// Reasons carried in the error query parameter of the callback redirect.
const (
	ReasonNoCode          = "no_code"
	ReasonInvalidState    = "invalid_state"
	ReasonExchangeFailed  = "exchange_failed"
	ReasonUnknownProvider = "unknown_provider"
	ReasonSaveFailed      = "save_failed"
)

type OAuthConfig struct {
	Registry    *integrations.Registry
	Manager     *oauth.Manager
	States      *oauth.StateCodec
	Credentials *credentials.Store
	// PublicURL is the origin used for redirect URIs. Empty means derive it
	// from the request.
	PublicURL       string
	SignInPath      string
	CredentialsPath string
}

// OAuthHandlers serves the connect and callback legs of the credential OAuth
// flow. Every outcome is a redirect because the caller is a browser, except an
// unknown provider on connect.
type OAuthHandlers struct {
	cfg OAuthConfig
}

func NewOAuthHandlers(cfg OAuthConfig) *OAuthHandlers {
	return &OAuthHandlers{cfg: cfg}
}

// Connect handles GET /api/oauth/{provider}/connect.
func (h *OAuthHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		metrics.RecordOAuth(provider, "connect", "unauthenticated")
		http.Redirect(w, r, h.cfg.SignInPath, http.StatusTemporaryRedirect)
		return
	}

	if !h.cfg.Manager.Available(provider) {
		metrics.RecordOAuth("unknown", "connect", "unknown_provider")
		Error(w, http.StatusBadRequest, CodeUnknownProvider, "Unknown provider")
		return
	}

	state, err := h.cfg.States.Encode(session.UserID)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("Failed to encode oauth state")
		InternalError(w, "Failed to start authorization")
		return
	}

	redirectURI := oauth.RedirectURI(h.origin(r), provider)
	authURL, err := h.cfg.Manager.AuthCodeURL(provider, redirectURI, state)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("Failed to build authorization URL")
		InternalError(w, "Failed to start authorization")
		return
	}

	metrics.RecordOAuth(provider, "connect", "redirected")
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback handles GET /api/oauth/{provider}/callback.
func (h *OAuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	query := r.URL.Query()

	logger := log.With().
		Str("request_id", requestctx.RequestID(r.Context())).
		Str("provider", provider).
		Logger()

	if providerErr := query.Get("error"); providerErr != "" {
		logger.Warn().Str("error", providerErr).Msg("Provider denied authorization")
		h.fail(w, r, provider, providerErr)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.fail(w, r, provider, ReasonNoCode)
		return
	}

	state, err := h.cfg.States.Decode(query.Get("state"))
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected oauth state")
		h.fail(w, r, provider, ReasonInvalidState)
		return
	}

	def, err := h.cfg.Registry.LookupOAuth(provider)
	if err != nil || !h.cfg.Manager.Available(provider) {
		h.fail(w, r, provider, ReasonUnknownProvider)
		return
	}

	redirectURI := oauth.RedirectURI(h.origin(r), provider)
	token, err := h.cfg.Manager.Exchange(r.Context(), provider, redirectURI, code)
	if err != nil {
		if errors.Is(err, integrations.ErrUnknownProvider) {
			h.fail(w, r, provider, ReasonUnknownProvider)
			return
		}
		logger.Error().Err(err).Msg("Token exchange failed")
		h.fail(w, r, provider, ReasonExchangeFailed)
		return
	}

	name, err := h.credentialName(r, state.UserID, def)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count existing credentials")
		h.fail(w, r, provider, ReasonSaveFailed)
		return
	}

	cred := &credentials.Credential{
		UserID:       state.UserID,
		Name:         name,
		Type:         integrations.AuthOAuth2,
		Provider:     provider,
		Data:         map[string]string{"accessToken": token.AccessToken},
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		Scope:        token.Scope,
		Metadata:     map[string]any{"tokenType": token.TokenType},
	}
	if err := h.cfg.Credentials.Create(r.Context(), cred); err != nil {
		logger.Error().Err(err).Msg("Failed to store credential")
		h.fail(w, r, provider, ReasonSaveFailed)
		return
	}

	logger.Info().
		Str("user_id", state.UserID).
		Str("credential_id", cred.ID).
		Msg("Credential connected")

	metrics.RecordOAuth(provider, "callback", "success")
	h.redirect(w, r, url.Values{"success": {provider}})
}

// credentialName numbers repeat connections: "Slack", "Slack (2)", ...
func (h *OAuthHandlers) credentialName(r *http.Request, userID string, def integrations.Integration) (string, error) {
	n, err := h.cfg.Credentials.CountByUser(r.Context(), userID, def.ID)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return def.Name, nil
	}
	return fmt.Sprintf("%s (%d)", def.Name, n+1), nil
}

func (h *OAuthHandlers) fail(w http.ResponseWriter, r *http.Request, provider, reason string) {
	outcome := reason
	switch reason {
	case ReasonNoCode, ReasonInvalidState, ReasonExchangeFailed, ReasonUnknownProvider, ReasonSaveFailed:
	default:
		// Provider-supplied error strings are unbounded; keep the label set small.
		outcome = "provider_error"
	}
	if !h.cfg.Manager.Available(provider) {
		provider = "unknown"
	}
	metrics.RecordOAuth(provider, "callback", outcome)
	h.redirect(w, r, url.Values{"error": {reason}})
}

func (h *OAuthHandlers) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.cfg.CredentialsPath+"?"+params.Encode(), http.StatusTemporaryRedirect)
}

// origin returns the scheme and host redirect URIs are built from. Connect
// and callback both go through here so the two URIs match byte for byte.
func (h *OAuthHandlers) origin(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimRight(h.cfg.PublicURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	return scheme + "://" + host
}
