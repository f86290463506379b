package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/config"
	"github.com/ricqchet/webhook-receiver/pkg/logging"
	"github.com/ricqchet/webhook-receiver/pkg/metrics"
	"github.com/ricqchet/webhook-receiver/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	currentSecret = []byte("whsec_current")
	nextSecret    = []byte("whsec_next")
)

func signedRequest(t *testing.T, secret []byte, ts time.Time, body []byte) *http.Request {
	t.Helper()
	signer, err := signature.NewSigner(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signature.HeaderSignature, signer.Sign(uint64(ts.Unix()), body))
	return req
}

func newTestAuthenticator(t *testing.T, secrets *config.ResolvedSecrets) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(secrets, signature.DefaultPolicy(), 1024, logging.NewDiscardLogger())
	require.NoError(t, err)
	return a
}

func TestNewAuthenticator_RequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(nil, signature.DefaultPolicy(), 1024, logging.NewDiscardLogger())
	assert.ErrorIs(t, err, signature.ErrNoSecret)

	_, err = NewAuthenticator(&config.ResolvedSecrets{}, signature.DefaultPolicy(), 1024, logging.NewDiscardLogger())
	assert.ErrorIs(t, err, signature.ErrNoSecret)
}

func TestMiddleware(t *testing.T) {
	body := []byte(`{"event":"test"}`)
	now := time.Now()

	tests := []struct {
		name       string
		secrets    *config.ResolvedSecrets
		request    func(t *testing.T) *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name:    "valid signature",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, currentSecret, now, body)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:    "missing signature",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing_signature",
		},
		{
			name:    "malformed header",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
				req.Header.Set(signature.HeaderSignature, "t=abc,v1=deadbeef")
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_format",
		},
		{
			name:    "expired",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, currentSecret, now.Add(-time.Hour), body)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "signature_expired",
		},
		{
			name:    "wrong secret",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, []byte("whsec_other"), now, body)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_signature",
		},
		{
			name:    "body too large",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, currentSecret, now, bytes.Repeat([]byte("x"), 2048))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "body_too_large",
		},
		{
			name:    "next secret during rotation",
			secrets: &config.ResolvedSecrets{Current: currentSecret, Next: nextSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, nextSecret, now, body)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:    "next secret without rotation",
			secrets: &config.ResolvedSecrets{Current: currentSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, nextSecret, now, body)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_signature",
		},
		{
			name:    "unknown secret during rotation",
			secrets: &config.ResolvedSecrets{Current: currentSecret, Next: nextSecret},
			request: func(t *testing.T) *http.Request {
				return signedRequest(t, []byte("whsec_other"), now, body)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuthenticator(t, tt.secrets)

			var gotResult *signature.Result
			var gotBody []byte
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotResult, _ = ResultFromContext(r.Context())
				gotBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			})

			rejectedBefore := testutil.ToFloat64(metrics.DeliveriesTotal.WithLabelValues(string(models.DeliveryStatusRejected)))

			rec := httptest.NewRecorder()
			a.Middleware(next).ServeHTTP(rec, tt.request(t))

			assert.Equal(t, tt.wantStatus, rec.Code)

			rejectedAfter := testutil.ToFloat64(metrics.DeliveriesTotal.WithLabelValues(string(models.DeliveryStatusRejected)))

			if tt.wantError != "" {
				assert.Equal(t, rejectedBefore+1, rejectedAfter)
				var resp map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.wantError, resp["error"])
				assert.Nil(t, gotResult, "next handler must not run on rejection")
				return
			}

			assert.Equal(t, rejectedBefore, rejectedAfter)
			require.NotNil(t, gotResult)
			assert.Equal(t, uint64(now.Unix()), gotResult.Timestamp)
			assert.Equal(t, body, gotBody, "body must stay readable after verification")
		})
	}
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusForKind(signature.KindBodyTooLarge))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(signature.KindBodyReadError))
	assert.Equal(t, http.StatusUnauthorized, StatusForKind(signature.KindInvalidSignature))
	assert.Equal(t, http.StatusUnauthorized, StatusForKind(signature.KindMissingSignature))
}

func TestResultFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	_, ok := ResultFromContext(req.Context())
	assert.False(t, ok)
}
