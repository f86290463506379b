package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	digest := strings.Repeat("ab", 32)

	tests := []struct {
		name        string
		raw         string
		wantTS      uint64
		wantDigest  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid lowercase",
			raw:        "t=1700000000,v1=" + digest,
			wantTS:     1700000000,
			wantDigest: digest,
		},
		{
			name:       "uppercase digest is normalized",
			raw:        "t=1700000000,v1=" + strings.ToUpper(digest),
			wantTS:     1700000000,
			wantDigest: digest,
		},
		{
			name:       "zero timestamp",
			raw:        "t=0,v1=" + digest,
			wantTS:     0,
			wantDigest: digest,
		},
		{
			name:       "max uint64 timestamp",
			raw:        "t=18446744073709551615,v1=" + digest,
			wantTS:     18446744073709551615,
			wantDigest: digest,
		},
		{
			name:        "garbage",
			raw:         "abc",
			wantErr:     true,
			errContains: "comma-separated",
		},
		{
			name:    "missing v1",
			raw:     "t=123",
			wantErr: true,
		},
		{
			name:        "non-numeric timestamp",
			raw:         "t=abc,v1=deadbeef",
			wantErr:     true,
			errContains: "decimal",
		},
		{
			name:        "non-hex digest",
			raw:         "t=123,v1=zz",
			wantErr:     true,
			errContains: "length",
		},
		{
			name:        "non-hex digest of correct length",
			raw:         "t=123,v1=" + strings.Repeat("zz", 32),
			wantErr:     true,
			errContains: "hexadecimal",
		},
		{
			name:    "short digest",
			raw:     "t=123,v1=deadbeef",
			wantErr: true,
		},
		{
			name:    "reordered fields",
			raw:     "v1=" + digest + ",t=123",
			wantErr: true,
		},
		{
			name:    "whitespace after comma",
			raw:     "t=123, v1=" + digest,
			wantErr: true,
		},
		{
			name:    "leading whitespace",
			raw:     " t=123,v1=" + digest,
			wantErr: true,
		},
		{
			name:    "trailing field",
			raw:     "t=123,v1=" + digest + ",v0=abc",
			wantErr: true,
		},
		{
			name:    "plus sign",
			raw:     "t=+123,v1=" + digest,
			wantErr: true,
		},
		{
			name:    "minus sign",
			raw:     "t=-123,v1=" + digest,
			wantErr: true,
		},
		{
			name:        "timestamp overflow",
			raw:         "t=18446744073709551616,v1=" + digest,
			wantErr:     true,
			errContains: "out of range",
		},
		{
			name:    "empty timestamp",
			raw:     "t=,v1=" + digest,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseHeader(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidFormat)
				assert.Equal(t, KindInvalidFormat, KindOf(err))
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTS, parsed.Timestamp)
			assert.Equal(t, tt.wantDigest, parsed.Digest)
		})
	}
}

func TestFormatHeader_RoundTrip(t *testing.T) {
	digest := strings.Repeat("0f", 32)
	raw := FormatHeader(42, digest)
	assert.Equal(t, "t=42,v1="+digest, raw)

	parsed, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), parsed.Timestamp)
	assert.Equal(t, digest, parsed.Digest)
}
