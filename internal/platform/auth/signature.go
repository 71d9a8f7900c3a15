package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeHMACSHA256 returns the lowercase hex HMAC-SHA256 of message keyed by secret.
func ComputeHMACSHA256(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 compares a hex signature against the expected HMAC in constant time.
func VerifyHMACSHA256(secret, message []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if len(secret) == 0 || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hmac.Equal(provided, mac.Sum(nil))
}
