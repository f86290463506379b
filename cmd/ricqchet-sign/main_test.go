package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ricqchet/webhook-receiver/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	bodyFile := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(bodyFile, []byte(`{"a":1}`), 0o600))
	t.Setenv("RICQCHET_SIGNING_SECRET", "whsec_env")

	tests := []struct {
		name        string
		args        []string
		stdin       string
		secret      string
		body        string
		wantErr     bool
		errContains string
		valueOnly   bool
	}{
		{
			name:   "file with env secret",
			args:   []string{"-timestamp", "1700000000", bodyFile},
			secret: "whsec_env",
			body:   `{"a":1}`,
		},
		{
			name:      "stdin with literal secret",
			args:      []string{"-secret", "whsec_literal", "-timestamp", "1700000000", "-value", "-"},
			stdin:     "payload",
			secret:    "whsec_literal",
			body:      "payload",
			valueOnly: true,
		},
		{
			name:        "missing body argument",
			args:        []string{},
			wantErr:     true,
			errContains: "usage",
		},
		{
			name:        "unset env secret",
			args:        []string{"-secret", "env:RICQCHET_TEST_UNSET", bodyFile},
			wantErr:     true,
			errContains: "empty value",
		},
		{
			name:        "missing file",
			args:        []string{filepath.Join(dir, "nope")},
			wantErr:     true,
			errContains: "failed to read body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, strings.NewReader(tt.stdin), &out)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)

			line := strings.TrimSpace(out.String())
			if !tt.valueOnly {
				prefix := signature.HeaderSignature + ": "
				require.True(t, strings.HasPrefix(line, prefix))
				line = strings.TrimPrefix(line, prefix)
			}

			parsed, err := signature.ParseHeader(line)
			require.NoError(t, err)
			assert.Equal(t, uint64(1700000000), parsed.Timestamp)
			assert.NoError(t, signature.VerifyDigest([]byte(tt.secret), parsed.Timestamp, parsed.Digest, []byte(tt.body)))
		})
	}
}
