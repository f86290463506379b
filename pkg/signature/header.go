package signature

import (
	"strconv"
	"strings"
)

const (
	// HeaderSignature carries "t=<unix seconds>,v1=<hex hmac>"
	HeaderSignature = "X-Ricqchet-Signature"
	HeaderMessageID = "X-Ricqchet-Message-Id"
	HeaderBatchID   = "X-Ricqchet-Batch-Id"
	HeaderAttempt   = "X-Ricqchet-Attempt"

	// DigestLength is the hex length of an HMAC-SHA256 digest
	DigestLength = 64

	timestampPrefix = "t="
	digestPrefix    = "v1="
)

// ParsedSignature is a structurally valid signature header
type ParsedSignature struct {
	Timestamp uint64
	// Digest is lowercase hex, DigestLength characters
	Digest string
}

// ParseHeader parses a raw signature header value.
//
// The accepted grammar is exactly "t=<digits>,v1=<64 hex>" with no
// whitespace and the fields in that order. The digest is accepted in
// either case and returned in lowercase.
func ParseHeader(raw string) (ParsedSignature, error) {
	tsPart, digestPart, ok := strings.Cut(raw, ",")
	if !ok {
		return ParsedSignature{}, reject(KindInvalidFormat, "expected two comma-separated fields")
	}

	tsDigits, ok := strings.CutPrefix(tsPart, timestampPrefix)
	if !ok {
		return ParsedSignature{}, reject(KindInvalidFormat, "first field must be t=")
	}
	timestamp, err := parseTimestamp(tsDigits)
	if err != nil {
		return ParsedSignature{}, err
	}

	digest, ok := strings.CutPrefix(digestPart, digestPrefix)
	if !ok {
		return ParsedSignature{}, reject(KindInvalidFormat, "second field must be v1=")
	}
	if len(digest) != DigestLength {
		return ParsedSignature{}, reject(KindInvalidFormat, "digest has wrong length")
	}
	if !isHex(digest) {
		return ParsedSignature{}, reject(KindInvalidFormat, "digest is not hexadecimal")
	}

	return ParsedSignature{
		Timestamp: timestamp,
		Digest:    strings.ToLower(digest),
	}, nil
}

// parseTimestamp accepts ASCII digits only, no sign
func parseTimestamp(digits string) (uint64, error) {
	if digits == "" {
		return 0, reject(KindInvalidFormat, "timestamp is empty")
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, reject(KindInvalidFormat, "timestamp is not a decimal integer")
		}
	}
	ts, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, reject(KindInvalidFormat, "timestamp out of range")
	}
	return ts, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// FormatHeader renders a signature header value
func FormatHeader(timestamp uint64, digest string) string {
	return timestampPrefix + strconv.FormatUint(timestamp, 10) + "," + digestPrefix + digest
}
