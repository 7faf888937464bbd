// Package webhook verifies inbound backend callbacks, deduplicates
// redelivered events against the seen-delivery ledger, and applies
// status transitions to the mapped task under a monotonic ordering
// rule.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"hash"

	"github.com/Geralt1983/Project-Archangel/internal/config"
)

var ErrSignatureMismatch = errors.New("webhook: signature mismatch")

// Verify checks body's signature against the scheme and secret declared
// for the backend, reading the signature from header. Comparison is
// constant-time; a caller never learns anything from timing about how
// much of the signature matched.
func Verify(cred config.BackendCredential, header string, body []byte) error {
	if header == "" {
		return ErrSignatureMismatch
	}

	var computed []byte
	switch cred.WebhookScheme {
	case config.SchemeHMACSHA256Hex:
		computed = hmacSum(sha256.New, cred.WebhookSecret, body)
		return compareHex(header, computed)
	case config.SchemeHMACSHA1Hex:
		computed = hmacSum(sha1.New, cred.WebhookSecret, body)
		return compareHex(header, computed)
	case config.SchemeHMACSHA256Base64:
		computed = hmacSum(sha256.New, cred.WebhookSecret, body)
		return compareBase64(header, computed)
	default:
		return errors.New("webhook: unknown signature scheme: " + string(cred.WebhookScheme))
	}
}

func hmacSum(newHash func() hash.Hash, secret string, body []byte) []byte {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func compareHex(header string, computed []byte) error {
	want, err := hex.DecodeString(header)
	if err != nil {
		return ErrSignatureMismatch
	}
	if subtle.ConstantTimeCompare(want, computed) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

func compareBase64(header string, computed []byte) error {
	want, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return ErrSignatureMismatch
	}
	if subtle.ConstantTimeCompare(want, computed) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
