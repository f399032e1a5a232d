// Package webhooks resolves inbound HTTP calls to webhook endpoints and turns
// them into workflow executions.
package webhooks

import (
	"errors"
	"time"
)

var (
	// ErrEndpointNotFound covers both a missing path and an inactive endpoint.
	ErrEndpointNotFound = errors.New("webhook endpoint not found or inactive")
	ErrPathTaken        = errors.New("webhook path already in use")
)

// Endpoint is a registered webhook path bound to one workflow.
type Endpoint struct {
	ID           string        `json:"id" yaml:"id"`
	Path         string        `json:"path" yaml:"path"`
	WorkflowID   string        `json:"workflowId" yaml:"workflow_id"`
	IsActive     bool          `json:"isActive" yaml:"is_active"`
	Verification *Verification `json:"verification,omitempty" yaml:"verification,omitempty"`
	LastCalledAt *time.Time    `json:"lastCalledAt,omitempty" yaml:"-"`
	CallCount    int64         `json:"callCount" yaml:"-"`
	CreatedAt    time.Time     `json:"createdAt" yaml:"-"`
	UpdatedAt    time.Time     `json:"updatedAt" yaml:"-"`
}

// Verification configures signature checking for an endpoint.
type Verification struct {
	Type   string `json:"type" yaml:"type"`     // "hmac-sha256" or "hmac-sha1"
	Header string `json:"header" yaml:"header"` // e.g. "X-Hub-Signature-256"
	Secret string `json:"secret" yaml:"secret"`
}
