package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const signaturePrefix = "sha256="

// SignPayload computes the HMAC-SHA256 signature of a webhook body under the
// shared secret. The result goes into the X-Trackarr-Signature header so
// receivers can verify the payload came from this service.
func SignPayload(body []byte, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for payload signing")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyPayload checks a signature header against the body. Comparison is
// constant time.
func VerifyPayload(body []byte, signature, secret string) error {
	if secret == "" {
		return errors.New("secret is required for payload verification")
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return errors.New("invalid signature format")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return errors.New("invalid signature encoding")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errors.New("invalid payload signature")
	}
	return nil
}
