package signature

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a delivery was rejected
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingSignature
	KindBodyTooLarge
	KindBodyReadError
	KindInvalidFormat
	KindSignatureExpired
	KindInvalidSignature
)

var (
	ErrMissingSignature = errors.New("signature header is required")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrBodyRead         = errors.New("failed to read request body")
	ErrInvalidFormat    = errors.New("invalid signature header format")
	ErrSignatureExpired = errors.New("signature timestamp outside allowed age")
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrNoSecret is a configuration error, never a per-request rejection
	ErrNoSecret = errors.New("signing secret is not configured")
)

var kindNames = map[ErrorKind]string{
	KindUnknown:          "unknown",
	KindMissingSignature: "missing_signature",
	KindBodyTooLarge:     "body_too_large",
	KindBodyReadError:    "body_read_error",
	KindInvalidFormat:    "invalid_format",
	KindSignatureExpired: "signature_expired",
	KindInvalidSignature: "invalid_signature",
}

var kindSentinels = map[ErrorKind]error{
	KindMissingSignature: ErrMissingSignature,
	KindBodyTooLarge:     ErrBodyTooLarge,
	KindBodyReadError:    ErrBodyRead,
	KindInvalidFormat:    ErrInvalidFormat,
	KindSignatureExpired: ErrSignatureExpired,
	KindInvalidSignature: ErrInvalidSignature,
}

// String returns the snake_case name used in logs, metrics and responses
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is the rejection outcome of a verification call
type Error struct {
	Kind ErrorKind
	// Detail is a short, secret-free description of the failure
	Detail string
	// Err is the collaborator error for body acquisition failures
	Err error
}

func (e *Error) Error() string {
	msg := "signature verification failed"
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		msg = sentinel.Error()
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the sentinel error for the rejection kind
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

func (e *Error) Unwrap() error {
	return e.Err
}

func reject(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// KindOf returns the rejection kind carried by err, or KindUnknown
func KindOf(err error) ErrorKind {
	var sigErr *Error
	if errors.As(err, &sigErr) {
		return sigErr.Kind
	}
	return KindUnknown
}
