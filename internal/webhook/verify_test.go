package webhook

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-secret"
	payload := []byte("test payload")
	validSignature := "sha256=" + Sign(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid signature", payload, validSignature, secret, true},
		{"invalid signature", payload, "sha256=invalidsignature", secret, false},
		{"wrong secret", payload, validSignature, "wrong-secret", false},
		{"missing sha256 prefix", payload, Sign(payload, secret), secret, false},
		{"empty signature", payload, "", secret, false},
		{"different payload", []byte("different payload"), validSignature, secret, false},
		{"almost valid", payload, validSignature[:len(validSignature)-1] + "X", secret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.payload, tt.signature, tt.secret)
			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckSignature(t *testing.T) {
	payload := []byte(`{"action":"opened"}`)
	valid := "sha256=" + Sign(payload, "s3cret")

	tests := []struct {
		name   string
		header string
		secret string
		want   error
	}{
		{"valid", valid, "s3cret", nil},
		{"no secret configured", valid, "", ErrNoSecret},
		{"missing header", "", "s3cret", ErrMissingSignature},
		{"wrong prefix", "sha1=abc123", "s3cret", ErrSignatureFormat},
		{"mismatch", "sha256=abc123", "s3cret", ErrSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSignature(payload, tt.header, tt.secret)
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckSignature() error = %v, want %v", err, tt.want)
			}
		})
	}
}
