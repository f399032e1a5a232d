package oauth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStateSecret = []byte("state-secret-that-is-long-enough-for-hmac")

func newTestCodec(t *testing.T) *StateCodec {
	t.Helper()
	c, err := NewStateCodec(testStateSecret, 10*time.Minute)
	require.NoError(t, err)
	return c
}

func TestStateCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Encode("user-123")
	require.NoError(t, err)

	s, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-123", s.UserID)
	assert.WithinDuration(t, time.Now(), s.IssuedAt(), 5*time.Second)
}

func TestStateCodec_PayloadIsBase64JSON(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Encode("user-123")
	require.NoError(t, err)

	data, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "user-123", payload["userId"])
	assert.NotZero(t, payload["timestamp"])
}

func TestStateCodec_AcceptsUnpaddedState(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Encode("user-1")
	require.NoError(t, err)

	s, err := c.Decode(strings.TrimRight(raw, "="))
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
}

func TestStateCodec_UserIDWithSeparator(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Encode("team|42")
	require.NoError(t, err)

	s, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "team|42", s.UserID)

	// Moving the separator between fields must break the signature.
	shifted := *s
	shifted.UserID = "team"
	shifted.Nonce = "42|" + s.Nonce
	assert.NotEqual(t, c.sign(s), c.sign(&shifted))
}

func TestStateCodec_RejectsMalformedNonce(t *testing.T) {
	c := newTestCodec(t)

	signed := func(nonce string) string {
		s := State{UserID: "user-1", Timestamp: time.Now().UnixMilli(), Nonce: nonce}
		s.Signature = c.sign(&s)
		out, err := json.Marshal(s)
		require.NoError(t, err)
		return base64.URLEncoding.EncodeToString(out)
	}

	tests := []struct {
		name  string
		nonce string
	}{
		{"empty", ""},
		{"short", "abcd"},
		{"not hex", strings.Repeat("z", 32)},
		{"too long", strings.Repeat("a", 34)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(signed(tt.nonce))
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}

	_, err := c.Decode(signed(strings.Repeat("a", 32)))
	assert.NoError(t, err)
}

func TestStateCodec_Nonce(t *testing.T) {
	c := newTestCodec(t)

	a, err := c.Encode("user-123")
	require.NoError(t, err)
	b, err := c.Encode("user-123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStateCodec_Invalid(t *testing.T) {
	c := newTestCodec(t)

	valid, err := c.Encode("user-123")
	require.NoError(t, err)

	tampered := func() string {
		data, _ := base64.URLEncoding.DecodeString(valid)
		var s State
		_ = json.Unmarshal(data, &s)
		s.UserID = "attacker"
		out, _ := json.Marshal(s)
		return base64.URLEncoding.EncodeToString(out)
	}()

	unsigned := base64.RawURLEncoding.EncodeToString([]byte(`{"userId":"user-123","timestamp":1700000000000}`))

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"missing user", base64.RawURLEncoding.EncodeToString([]byte(`{"timestamp":1}`))},
		{"unsigned", unsigned},
		{"tampered", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestStateCodec_WrongSecret(t *testing.T) {
	c := newTestCodec(t)
	raw, err := c.Encode("user-123")
	require.NoError(t, err)

	other, err := NewStateCodec([]byte("a-completely-different-secret-value!!"), 10*time.Minute)
	require.NoError(t, err)

	_, err = other.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateCodec_Expiry(t *testing.T) {
	c := newTestCodec(t)

	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }
	raw, err := c.Encode("user-123")
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(9 * time.Minute) }
	_, err = c.Decode(raw)
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(11 * time.Minute) }
	_, err = c.Decode(raw)
	assert.ErrorIs(t, err, ErrStateExpired)

	c.now = func() time.Time { return issued.Add(-2 * time.Minute) }
	_, err = c.Decode(raw)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestNewStateCodec_EmptySecret(t *testing.T) {
	_, err := NewStateCodec(nil, time.Minute)
	assert.Error(t, err)
}
