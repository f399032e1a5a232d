package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Allowed clock skew for states timestamped slightly in the future.
const stateSkew = time.Minute

// Nonces are 16 random bytes, hex encoded.
const nonceLen = 32

// State is the payload round-tripped through the provider. It is the only link
// between the connect request and the callback.
type State struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"sig"`
}

// IssuedAt returns the time the state was created.
func (s *State) IssuedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// StateCodec encodes states as padded base64url JSON (RFC 4648 section 5)
// signed with HMAC-SHA256 and rejects them once they are older than maxAge.
// Decode also accepts the unpadded form.
type StateCodec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewStateCodec(secret []byte, maxAge time.Duration) (*StateCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("state secret is empty")
	}
	return &StateCodec{
		secret: secret,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

func (c *StateCodec) Encode(userID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	s := State{
		UserID:    userID,
		Timestamp: c.now().UnixMilli(),
		Nonce:     hex.EncodeToString(nonce),
	}
	s.Signature = c.sign(&s)

	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode verifies raw and returns its payload. Malformed, unsigned or tampered
// states yield ErrInvalidState; stale ones yield ErrStateExpired.
func (c *StateCodec) Decode(raw string) (*State, error) {
	if raw == "" {
		return nil, ErrInvalidState
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, ErrInvalidState
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ErrInvalidState
	}

	if s.UserID == "" || s.Timestamp == 0 || !validNonce(s.Nonce) {
		return nil, ErrInvalidState
	}

	expected, err := hex.DecodeString(c.sign(&s))
	if err != nil {
		return nil, ErrInvalidState
	}
	got, err := hex.DecodeString(s.Signature)
	if err != nil || !hmac.Equal(expected, got) {
		return nil, ErrInvalidState
	}

	now := c.now()
	issued := s.IssuedAt()
	if now.Sub(issued) > c.maxAge || issued.Sub(now) > stateSkew {
		return nil, ErrStateExpired
	}

	return &s, nil
}

// sign MACs the length-prefixed user id followed by the timestamp and nonce.
// The prefix keeps a user id containing the separator from shifting fields.
func (c *StateCodec) sign(s *State) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(strconv.Itoa(len(s.UserID))))
	mac.Write([]byte{':'})
	mac.Write([]byte(s.UserID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(s.Timestamp, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(s.Nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

func validNonce(nonce string) bool {
	if len(nonce) != nonceLen {
		return false
	}
	_, err := hex.DecodeString(nonce)
	return err == nil
}
