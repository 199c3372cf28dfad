package outbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SignaturePrefix prefixes the hex digest in the X-Signature header.
const SignaturePrefix = "sha256="

// ReplayWindow bounds how stale a signed timestamp may be.
const ReplayWindow = 300 * time.Second

// Sign computes the delivery signature over "<timestamp>.<body>".
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time. A
// timestamp outside the replay window fails regardless of the digest.
func Verify(secret string, timestamp int64, body []byte, signature string, now time.Time) bool {
	age := now.Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if age > int64(ReplayWindow/time.Second) {
		return false
	}

	expected := Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
