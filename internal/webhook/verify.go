package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const signaturePrefix = "sha256="

var (
	ErrMissingSignature = errors.New("missing X-Hub-Signature-256 header")
	ErrSignatureFormat  = errors.New("invalid signature format, expected 'sha256=<hash>'")
	ErrSignatureInvalid = errors.New("signature does not match payload")
	ErrNoSecret         = errors.New("webhook secret is not configured")
)

// CheckSignature validates a GitHub X-Hub-Signature-256 header against payload.
func CheckSignature(payload []byte, header, secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrSignatureFormat
	}
	if !VerifySignature(payload, header, secret) {
		return fmt.Errorf("%w (%d byte payload)", ErrSignatureInvalid, len(payload))
	}
	return nil
}

// VerifySignature compares HMAC-SHA256(secret, payload) with the header in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	received := strings.TrimPrefix(signature, signaturePrefix)
	return hmac.Equal([]byte(received), []byte(Sign(payload, secret)))
}

// Sign returns the hex HMAC-SHA256 of payload, without the sha256= prefix.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
