// Package sign holds the signature schemes the payment core depends on:
// the salted SHA-1 scheme used by redirect-form gateways and the
// hex-encoded HMAC-SHA256 used for outbound webhook payloads.
package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// SaltedSHA1 computes base64(SHA1(secret + data + secret)). This is the
// signature scheme of the redirect-form gateway: the provider signs the
// base64-encoded payload with the merchant's private key on both sides.
func SaltedSHA1(secret, data string) string {
	sum := sha1.Sum([]byte(secret + data + secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifySaltedSHA1 reports whether signature matches the salted SHA-1
// signature of data under secret. Comparison is constant-time.
func VerifySaltedSHA1(secret, data, signature string) bool {
	expected := SaltedSHA1(secret, data)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HMACSHA256Hex computes the hex-encoded HMAC-SHA256 of body keyed by
// secret. An empty secret yields an empty signature: unsigned webhooks
// carry an empty signature header rather than omitting it.
func HMACSHA256Hex(secret string, body []byte) string {
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
