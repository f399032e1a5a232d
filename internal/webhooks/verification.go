package webhooks

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - some webhook senders still sign with SHA1
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"strings"
)

const (
	VerifyHMACSHA256 = "hmac-sha256"
	VerifyHMACSHA1   = "hmac-sha1"
)

// VerificationResult contains the result of webhook signature verification.
type VerificationResult struct {
	Valid  bool
	Error  string
	Method string
}

// Verify checks the signature carried in the configured header against body.
// A nil Verification always passes.
func (v *Verification) Verify(header http.Header, body []byte) *VerificationResult {
	if v == nil {
		return &VerificationResult{Valid: true, Method: "none"}
	}
	return VerifySignature(v, body, header.Get(v.Header))
}

// VerifySignature verifies signature, given either as raw hex or in the
// "sha256=<hex>" form GitHub uses.
func VerifySignature(v *Verification, body []byte, signature string) *VerificationResult {
	mac, err := newMAC(v.Type, v.Secret)
	if err != nil {
		return &VerificationResult{Error: err.Error(), Method: v.Type}
	}

	if signature == "" {
		return &VerificationResult{Error: "missing signature", Method: v.Type}
	}

	if _, after, ok := strings.Cut(signature, "="); ok {
		signature = after
	}

	actual, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return &VerificationResult{
			Error:  fmt.Sprintf("invalid signature format: %v", err),
			Method: v.Type,
		}
	}

	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), actual) {
		return &VerificationResult{Error: "signature mismatch", Method: v.Type}
	}

	return &VerificationResult{Valid: true, Method: v.Type}
}

// Sign returns the hex signature a sender would put in the header.
func Sign(v *Verification, body []byte) (string, error) {
	mac, err := newMAC(v.Type, v.Secret)
	if err != nil {
		return "", err
	}
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func newMAC(kind, secret string) (hash.Hash, error) {
	switch kind {
	case VerifyHMACSHA256:
		return hmac.New(sha256.New, []byte(secret)), nil
	case VerifyHMACSHA1:
		return hmac.New(sha1.New, []byte(secret)), nil
	default:
		return nil, fmt.Errorf("unsupported verification type: %s", kind)
	}
}
