package signature

import (
	"fmt"
	"time"
)

// DefaultMaxAge is the freshness window applied when none is configured
const DefaultMaxAge = 300 * time.Second

// Policy controls the freshness check
type Policy struct {
	// MaxAge bounds the age of the signed timestamp. Nil disables the
	// freshness check entirely.
	MaxAge *time.Duration
}

// DefaultPolicy returns a policy with the DefaultMaxAge window
func DefaultPolicy() Policy {
	return WithMaxAge(DefaultMaxAge)
}

// WithMaxAge returns a policy bounded by maxAge
func WithMaxAge(maxAge time.Duration) Policy {
	return Policy{MaxAge: &maxAge}
}

// NoExpiry returns a policy that never rejects on age, for re-verifying
// archived deliveries
func NoExpiry() Policy {
	return Policy{}
}

func (p Policy) String() string {
	if p.MaxAge == nil {
		return "none"
	}
	return p.MaxAge.String()
}

// CheckFreshness rejects timestamps older than the policy allows.
//
// Age is measured in whole seconds. A timestamp ahead of now has a negative
// age and always passes.
func CheckFreshness(timestamp uint64, policy Policy, now time.Time) error {
	if policy.MaxAge == nil {
		return nil
	}

	nowSecs := now.Unix()
	if nowSecs < 0 || timestamp >= uint64(nowSecs) {
		return nil
	}

	age := uint64(nowSecs) - timestamp
	var maxAge uint64
	if *policy.MaxAge > 0 {
		maxAge = uint64(*policy.MaxAge / time.Second)
	}
	if age > maxAge {
		return reject(KindSignatureExpired, fmt.Sprintf("age %ds exceeds %ds", age, maxAge))
	}
	return nil
}
