package integrations

import (
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Registry is an immutable lookup table of integrations keyed by id.
type Registry struct {
	defs map[string]Integration
	ids  []string
}

// NewRegistry validates defs and builds a registry from them.
func NewRegistry(defs []Integration) (*Registry, error) {
	r := &Registry{defs: make(map[string]Integration, len(defs))}

	for _, def := range defs {
		if err := validate(def); err != nil {
			return nil, err
		}
		if _, dup := r.defs[def.ID]; dup {
			return nil, fmt.Errorf("integration %q registered twice", def.ID)
		}
		r.defs[def.ID] = clone(def)
		r.ids = append(r.ids, def.ID)
	}

	sort.Strings(r.ids)
	return r, nil
}

// Default returns a registry of the builtin integrations.
func Default() *Registry {
	r, err := NewRegistry(Builtin())
	if err != nil {
		panic(fmt.Sprintf("builtin integrations: %v", err))
	}
	return r
}

// Lookup returns the integration with the given id, or an *UnknownProviderError.
// The returned value is a copy; mutating it does not affect the registry.
func (r *Registry) Lookup(id string) (Integration, error) {
	def, ok := r.defs[id]
	if !ok {
		return Integration{}, &UnknownProviderError{Provider: id}
	}
	return clone(def), nil
}

// LookupOAuth is Lookup restricted to oauth2 integrations.
func (r *Registry) LookupOAuth(id string) (Integration, error) {
	def, err := r.Lookup(id)
	if err != nil {
		return Integration{}, err
	}
	if def.AuthType != AuthOAuth2 {
		return Integration{}, &UnknownProviderError{Provider: id}
	}
	return def, nil
}

// List returns every integration ordered by id.
func (r *Registry) List() []Integration {
	out := make([]Integration, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, clone(r.defs[id]))
	}
	return out
}

func validate(def Integration) error {
	if def.ID == "" {
		return fmt.Errorf("integration has empty id")
	}

	switch def.AuthType {
	case AuthOAuth2:
		if def.Scopes == nil {
			return fmt.Errorf("integration %q: oauth2 integrations need a scopes list", def.ID)
		}
	case AuthAPIKey, AuthBasic:
	default:
		return fmt.Errorf("integration %q: unsupported auth type %q", def.ID, def.AuthType)
	}

	for opID, op := range def.Operations {
		for name, arg := range op.Args {
			if !arg.Type.valid() {
				return fmt.Errorf("integration %q operation %q arg %q: invalid type %q", def.ID, opID, name, arg.Type)
			}
			if arg.Label == "" {
				return fmt.Errorf("integration %q operation %q arg %q: empty label", def.ID, opID, name)
			}
		}
	}

	return nil
}

func clone(def Integration) Integration {
	if def.Scopes != nil {
		def.Scopes = slices.Clone(def.Scopes)
	}
	if def.Operations != nil {
		ops := make(map[string]Operation, len(def.Operations))
		for id, op := range def.Operations {
			op.Args = maps.Clone(op.Args)
			ops[id] = op
		}
		def.Operations = ops
	}
	return def
}
