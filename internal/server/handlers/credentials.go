package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/credentials"
)

type CredentialHandlers struct {
	store *credentials.Store
}

func NewCredentialHandlers(store *credentials.Store) *CredentialHandlers {
	return &CredentialHandlers{store: store}
}

// List handles GET /api/credentials. Secrets never leave the store.
func (h *CredentialHandlers) List(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}

	list, err := h.store.ListByUser(r.Context(), session.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", session.UserID).Msg("Failed to list credentials")
		InternalError(w, "Failed to list credentials")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"credentials": list,
		"count":       len(list),
	})
}
