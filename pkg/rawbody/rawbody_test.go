package rawbody

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	payload := []byte("{\"a\": 1,\n  \"b\": \"é\"}\r\n")

	tests := []struct {
		name    string
		body    io.Reader
		limit   int64
		want    []byte
		wantErr error
	}{
		{
			name:  "exact bytes preserved",
			body:  bytes.NewReader(payload),
			limit: 1024,
			want:  payload,
		},
		{
			name:  "unbounded",
			body:  bytes.NewReader(payload),
			limit: 0,
			want:  payload,
		},
		{
			name:  "exactly at limit",
			body:  bytes.NewReader(payload),
			limit: int64(len(payload)),
			want:  payload,
		},
		{
			name:    "over limit",
			body:    bytes.NewReader(payload),
			limit:   int64(len(payload) - 1),
			wantErr: ErrTooLarge,
		},
		{
			name:    "read failure",
			body:    &errReader{},
			limit:   1024,
			wantErr: ErrRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook", tt.body)

			got, err := Read(req, tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, again)
		})
	}
}

func TestRead_MaxBytesReader(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(make([]byte, 64)))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	_, err := Read(req, 0)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRead_NoBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)

	got, err := Read(req, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type errReader struct{}

func (e *errReader) Read(p []byte) (int, error) {
	return 0, errors.New("unexpected EOF")
}
