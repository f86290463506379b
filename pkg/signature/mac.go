package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ComputeDigest returns the lowercase hex HMAC-SHA256 of
// "<timestamp>.<body>" keyed by secret
func ComputeDigest(secret []byte, timestamp uint64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatUint(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyDigest recomputes the digest for body and compares it with the
// supplied one in constant time
func VerifyDigest(secret []byte, timestamp uint64, digest string, body []byte) error {
	expected := ComputeDigest(secret, timestamp, body)
	if !ConstantTimeEqual(expected, digest) {
		return reject(KindInvalidSignature, "")
	}
	return nil
}

// ConstantTimeEqual compares two strings without short-circuiting on the
// first differing byte. Only a length mismatch returns early.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	var result byte
	for i := 0; i < len(a); i++ {
		result |= a[i] ^ b[i]
	}

	return result == 0
}
