package signature

import (
	"time"
)

// Signer produces signature headers the way the Ricqchet sender does
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer for secret
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &Signer{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}, nil
}

// Sign returns the header value for body signed at timestamp
func (s *Signer) Sign(timestamp uint64, body []byte) string {
	return FormatHeader(timestamp, ComputeDigest(s.secret, timestamp, body))
}

// SignNow signs body with the current time
func (s *Signer) SignNow(body []byte) string {
	return s.Sign(uint64(s.now().Unix()), body)
}
