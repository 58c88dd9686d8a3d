package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)
	secret := "sk_test_secret"

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !VerifySignature(payload, valid, secret) {
		t.Fatalf("expected valid signature to verify")
	}
	if !VerifySignature(payload, " "+valid+" ", secret) {
		t.Fatalf("expected whitespace-padded signature to verify")
	}
	if VerifySignature(payload, valid, "other_secret") {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifySignature([]byte(`tampered`), valid, secret) {
		t.Fatalf("expected tampered payload to fail")
	}
	if VerifySignature(payload, "deadbeef", secret) {
		t.Fatalf("expected truncated signature to fail")
	}
	if VerifySignature(payload, "not-hex", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
	if VerifySignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifySignature(payload, valid, "") {
		t.Fatalf("expected empty secret to fail")
	}
}
