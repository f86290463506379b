package signature

import (
	"errors"
	"net/http"
	"time"

	"github.com/ricqchet/webhook-receiver/pkg/rawbody"
)

// Result is the outcome of a successful verification
type Result struct {
	// Timestamp is the signed unix timestamp from the header
	Timestamp uint64
	Metadata  Metadata
}

// Verifier checks Ricqchet delivery signatures against one secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	policy Policy
	now    func() time.Time
}

// Option configures a Verifier
type Option func(*Verifier)

// WithPolicy sets the freshness policy. The default is DefaultPolicy.
func WithPolicy(policy Policy) Option {
	return func(v *Verifier) {
		v.policy = policy
	}
}

// WithClock overrides the time source used for freshness checks
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a verifier for an already-resolved secret
func NewVerifier(secret []byte, opts ...Option) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}

	v := &Verifier{
		secret: append([]byte(nil), secret...),
		policy: DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Policy returns the freshness policy in effect
func (v *Verifier) Policy() Policy {
	return v.policy
}

// VerifyRequest verifies an inbound HTTP delivery. The raw body is read with
// at most maxBody bytes and put back on the request for later handlers.
func (v *Verifier) VerifyRequest(r *http.Request, maxBody int64) (*Result, error) {
	raw, ok := lookupSignature(r.Header)
	if !ok {
		return nil, reject(KindMissingSignature, "")
	}

	body, err := rawbody.Read(r, maxBody)
	if err != nil {
		if errors.Is(err, rawbody.ErrTooLarge) {
			return nil, &Error{Kind: KindBodyTooLarge, Err: err}
		}
		return nil, &Error{Kind: KindBodyReadError, Err: err}
	}

	return v.verify(raw, body, r.Header)
}

// Verify runs the pipeline over headers and a body the caller already read
func (v *Verifier) Verify(h Header, body []byte) (*Result, error) {
	raw, ok := lookupSignature(h)
	if !ok {
		return nil, reject(KindMissingSignature, "")
	}
	return v.verify(raw, body, h)
}

// VerifyHeader verifies a raw signature header value and body directly,
// outside of any request. The returned metadata is empty.
func (v *Verifier) VerifyHeader(raw string, body []byte) (*Result, error) {
	return v.verify(raw, body, nil)
}

func (v *Verifier) verify(raw string, body []byte, h Header) (*Result, error) {
	parsed, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	if err := CheckFreshness(parsed.Timestamp, v.policy, v.now()); err != nil {
		return nil, err
	}

	if err := VerifyDigest(v.secret, parsed.Timestamp, parsed.Digest, body); err != nil {
		return nil, err
	}

	return &Result{
		Timestamp: parsed.Timestamp,
		Metadata:  ExtractMetadata(h),
	}, nil
}

// VerifyHeader is the stateless form of Verifier.VerifyHeader
func VerifyHeader(raw string, body, secret []byte, policy Policy) (*Result, error) {
	v, err := NewVerifier(secret, WithPolicy(policy))
	if err != nil {
		return nil, err
	}
	return v.VerifyHeader(raw, body)
}

// lookupSignature treats an empty header the same as an absent one
func lookupSignature(h Header) (string, bool) {
	if h == nil {
		return "", false
	}
	values := h.Values(HeaderSignature)
	if len(values) == 0 || values[0] == "" {
		return "", false
	}
	return values[0], true
}
