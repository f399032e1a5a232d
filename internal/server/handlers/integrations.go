package handlers

import (
	"net/http"

	"github.com/flowgent/flowgent/internal/integrations"
	"github.com/flowgent/flowgent/internal/oauth"
)

type IntegrationHandlers struct {
	registry *integrations.Registry
	manager  *oauth.Manager
}

func NewIntegrationHandlers(registry *integrations.Registry, manager *oauth.Manager) *IntegrationHandlers {
	return &IntegrationHandlers{registry: registry, manager: manager}
}

type integrationView struct {
	integrations.Integration
	// Connectable is true for OAuth integrations whose client credentials are configured.
	Connectable bool `json:"connectable"`
}

// List handles GET /api/integrations.
func (h *IntegrationHandlers) List(w http.ResponseWriter, r *http.Request) {
	defs := h.registry.List()
	views := make([]integrationView, 0, len(defs))
	for _, def := range defs {
		views = append(views, integrationView{
			Integration: def,
			Connectable: def.AuthType == integrations.AuthOAuth2 && h.manager.Available(def.ID),
		})
	}

	JSON(w, http.StatusOK, map[string]any{
		"integrations": views,
		"count":        len(views),
	})
}
