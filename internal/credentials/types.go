// Package credentials stores third-party credentials with their secrets
// encrypted at rest.
package credentials

import (
	"time"

	"github.com/flowgent/flowgent/internal/integrations"
)

// Credential is a stored secret for one provider, owned by one user.
type Credential struct {
	ID       string
	UserID   string
	Name     string
	Type     integrations.AuthType
	Provider string
	// Data holds the secret payload, e.g. {"accessToken": "..."}. Encrypted at rest.
	Data         map[string]string
	RefreshToken string
	ExpiresAt    *time.Time
	Scope        string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Summary is a Credential without its secrets, safe to return to clients.
type Summary struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Type      integrations.AuthType `json:"type"`
	Provider  string                `json:"provider"`
	Scope     string                `json:"scope,omitempty"`
	ExpiresAt *time.Time            `json:"expiresAt,omitempty"`
	Metadata  map[string]any        `json:"metadata"`
	CreatedAt time.Time             `json:"createdAt"`
}
