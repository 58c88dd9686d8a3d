package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the x-paystack-signature header: an HMAC-SHA512 of
// the raw request body keyed with the API secret, hex-encoded.
func VerifySignature(payload []byte, signatureHeader, secretKey string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || secretKey == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
