// Package webhook implements signed event delivery to subscriber endpoints:
// HMAC signing with secret rotation, a subscription registry, publish-time
// fan-out through the outbox, and the delivery job handler.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Signature scheme identifiers sent with every delivery.
const (
	SignatureAlg     = "hmac-sha256"
	SignatureVersion = "v1"
)

// Sign computes the hex HMAC-SHA256 of the canonical JSON serialization of
// payload. Map keys serialize in sorted order, so logically equal payloads
// sign identically on both ends.
func Sign(secret string, payload any) (string, error) {
	body, err := canonical(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature matches payload under secret. The
// comparison is constant time.
func Verify(secret string, payload any, signature string) bool {
	want, err := Sign(secret, payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(signature))
}

// VerifyAny accepts a signature produced by any secret in the set. Receivers
// configured with old+new secrets keep accepting deliveries across a secret
// rotation.
func VerifyAny(secrets []string, payload any, signature string) bool {
	for _, secret := range secrets {
		if Verify(secret, payload, signature) {
			return true
		}
	}
	return false
}

func canonical(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return body, nil
}
