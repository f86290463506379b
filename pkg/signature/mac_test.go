package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDigest(t *testing.T) {
	secret := []byte("secret")
	body := []byte(`{"event":"test"}`)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(`1700000000.{"event":"test"}`))
	want := hex.EncodeToString(mac.Sum(nil))

	got := ComputeDigest(secret, 1700000000, body)
	assert.Equal(t, want, got)
	assert.Len(t, got, DigestLength)

	// Deterministic
	assert.Equal(t, got, ComputeDigest(secret, 1700000000, body))

	// Timestamp is part of the signed message
	assert.NotEqual(t, got, ComputeDigest(secret, 1700000001, body))
}

func TestComputeDigest_BinaryBody(t *testing.T) {
	secret := []byte("secret")
	body := []byte{0x00, 0xff, '\r', '\n', 0x80}

	mac := hmac.New(sha256.New, secret)
	mac.Write(append([]byte("7."), body...))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, ComputeDigest(secret, 7, body))
}

func TestVerifyDigest(t *testing.T) {
	secret := []byte("secret")
	body := []byte(`{"event":"test"}`)
	digest := ComputeDigest(secret, 100, body)

	assert.NoError(t, VerifyDigest(secret, 100, digest, body))

	err := VerifyDigest([]byte("other"), 100, digest, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, KindInvalidSignature, KindOf(err))

	err = VerifyDigest(secret, 101, digest, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyDigest_TamperSensitivity(t *testing.T) {
	secret := []byte("secret")
	body := []byte(`{"event":"test","payload":[1,2,3]}`)
	digest := ComputeDigest(secret, 100, body)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		err := VerifyDigest(secret, 100, digest, tampered)
		assert.ErrorIs(t, err, ErrInvalidSignature, "byte %d flipped", i)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{
			name: "equal strings",
			a:    "deadbeef",
			b:    "deadbeef",
			want: true,
		},
		{
			name: "differ in last byte",
			a:    "deadbeef",
			b:    "deadbeee",
			want: false,
		},
		{
			name: "differ in first byte",
			a:    "deadbeef",
			b:    "ceadbeef",
			want: false,
		},
		{
			name: "different lengths",
			a:    "short",
			b:    "much-longer-string",
			want: false,
		},
		{
			name: "empty strings",
			a:    "",
			b:    "",
			want: true,
		},
		{
			name: "one empty",
			a:    "token",
			b:    "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstantTimeEqual(tt.a, tt.b))
		})
	}
}
