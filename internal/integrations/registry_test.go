package integrations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Invariants(t *testing.T) {
	r := Default()

	for _, def := range r.List() {
		if def.AuthType == AuthOAuth2 {
			assert.NotNil(t, def.Scopes, "%s: oauth2 scopes must be non-nil", def.ID)
		}
		for opID, op := range def.Operations {
			for name, arg := range op.Args {
				assert.NotEmpty(t, arg.Type, "%s.%s.%s type", def.ID, opID, name)
				assert.NotEmpty(t, arg.Label, "%s.%s.%s label", def.ID, opID, name)
			}
		}
	}
}

func TestDefault_OAuthProviders(t *testing.T) {
	r := Default()

	for _, id := range []string{"slack", "google", "github", "notion"} {
		def, err := r.LookupOAuth(id)
		require.NoError(t, err, id)
		assert.Equal(t, AuthOAuth2, def.AuthType)
	}

	notion, err := r.Lookup("notion")
	require.NoError(t, err)
	assert.NotNil(t, notion.Scopes)
	assert.Empty(t, notion.Scopes)
}

func TestLookup_Unknown(t *testing.T) {
	r := Default()

	_, err := r.Lookup("unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProvider))

	var upe *UnknownProviderError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "unknown", upe.Provider)
}

func TestLookupOAuth_RejectsNonOAuth(t *testing.T) {
	r := Default()

	_, err := r.Lookup("openai")
	require.NoError(t, err)

	_, err = r.LookupOAuth("openai")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	r := Default()

	def, err := r.Lookup("slack")
	require.NoError(t, err)
	def.Scopes[0] = "admin"
	def.Operations["sendMessage"].Args["channel"] = Arg{Type: ArgNumber, Label: "x"}

	again, err := r.Lookup("slack")
	require.NoError(t, err)
	assert.Equal(t, "chat:write", again.Scopes[0])
	assert.Equal(t, ArgString, again.Operations["sendMessage"].Args["channel"].Type)
}

func TestList_Sorted(t *testing.T) {
	list := Default().List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name string
		defs []Integration
	}{
		{"empty id", []Integration{{AuthType: AuthAPIKey}}},
		{"oauth2 without scopes", []Integration{{ID: "x", AuthType: AuthOAuth2}}},
		{"bad auth type", []Integration{{ID: "x", AuthType: "token"}}},
		{"duplicate", []Integration{{ID: "x", AuthType: AuthBasic}, {ID: "x", AuthType: AuthBasic}}},
		{"arg without label", []Integration{{
			ID: "x", AuthType: AuthBasic,
			Operations: map[string]Operation{"op": {Args: map[string]Arg{"a": {Type: ArgString}}}},
		}}},
		{"arg with bad type", []Integration{{
			ID: "x", AuthType: AuthBasic,
			Operations: map[string]Operation{"op": {Args: map[string]Arg{"a": {Type: "date", Label: "A"}}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs)
			assert.Error(t, err)
		})
	}
}
