package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/Geralt1983/Project-Archangel/internal/config"
)

func TestVerifyHMACSHA256Hex(t *testing.T) {
	secret := "shh"
	body := []byte(`{"event":"task.updated"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	cred := config.BackendCredential{WebhookSecret: secret, WebhookScheme: config.SchemeHMACSHA256Hex}
	if err := Verify(cred, sig, body); err != nil {
		t.Fatalf("expected valid signature to verify, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	secret := "shh"
	body := []byte(`{"event":"task.updated"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	cred := config.BackendCredential{WebhookSecret: secret, WebhookScheme: config.SchemeHMACSHA256Hex}
	tampered := []byte(`{"event":"task.deleted"}`)
	if err := Verify(cred, sig, tampered); err == nil {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	cred := config.BackendCredential{WebhookSecret: "shh", WebhookScheme: config.SchemeHMACSHA256Hex}
	if err := Verify(cred, "", []byte("x")); err == nil {
		t.Fatal("expected missing signature header to fail verification")
	}
}
