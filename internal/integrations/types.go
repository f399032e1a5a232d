// Package integrations declares the third-party providers Flowgent can talk to:
// how each authenticates, which OAuth scopes it needs and the operations its
// nodes can call.
package integrations

import (
	"errors"
	"fmt"
)

// AuthType is how an integration authenticates.
type AuthType string

const (
	AuthOAuth2 AuthType = "oauth2"
	AuthAPIKey AuthType = "apiKey"
	AuthBasic  AuthType = "basic"
)

// ArgType is the value type of an operation argument.
type ArgType string

const (
	ArgString  ArgType = "string"
	ArgNumber  ArgType = "number"
	ArgBoolean ArgType = "boolean"
	ArgJSON    ArgType = "json"
	ArgArray   ArgType = "array"
)

func (t ArgType) valid() bool {
	switch t {
	case ArgString, ArgNumber, ArgBoolean, ArgJSON, ArgArray:
		return true
	}
	return false
}

// Arg describes one argument accepted by an operation.
type Arg struct {
	Type     ArgType `json:"type" yaml:"type"`
	Label    string  `json:"label" yaml:"label"`
	Required bool    `json:"required" yaml:"required"`
}

// Operation is a callable action exposed by an integration, keyed by argument name.
type Operation struct {
	Name string         `json:"name" yaml:"name"`
	Args map[string]Arg `json:"args" yaml:"args"`
}

// Integration is the static definition of one provider.
type Integration struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	AuthType    AuthType             `json:"authType" yaml:"auth_type"`
	Scopes      []string             `json:"scopes" yaml:"scopes"`
	Operations  map[string]Operation `json:"operations" yaml:"operations"`
}

var ErrUnknownProvider = errors.New("unknown provider")

// UnknownProviderError is returned for provider ids missing from the registry.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %q", e.Provider)
}

func (e *UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}
