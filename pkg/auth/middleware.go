package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/config"
	"github.com/ricqchet/webhook-receiver/pkg/logging"
	"github.com/ricqchet/webhook-receiver/pkg/metrics"
	"github.com/ricqchet/webhook-receiver/pkg/rawbody"
	"github.com/ricqchet/webhook-receiver/pkg/signature"
	"github.com/sirupsen/logrus"
)

const outcomeVerified = "verified"

type resultKey struct{}

// Authenticator verifies Ricqchet delivery signatures on inbound requests
type Authenticator struct {
	// verifiers[0] uses the current secret, verifiers[1] the next one
	// while a rotation is in progress
	verifiers []*signature.Verifier
	maxBody   int64
	logger    *logrus.Logger
	now       func() time.Time
}

// NewAuthenticator creates an Authenticator from resolved secrets
func NewAuthenticator(secrets *config.ResolvedSecrets, policy signature.Policy, maxBody int64, logger *logrus.Logger, opts ...signature.Option) (*Authenticator, error) {
	if secrets == nil {
		return nil, signature.ErrNoSecret
	}

	opts = append([]signature.Option{signature.WithPolicy(policy)}, opts...)

	current, err := signature.NewVerifier(secrets.Current, opts...)
	if err != nil {
		return nil, fmt.Errorf("current signing secret: %w", err)
	}

	a := &Authenticator{
		verifiers: []*signature.Verifier{current},
		maxBody:   maxBody,
		logger:    logger,
		now:       time.Now,
	}

	if len(secrets.Next) > 0 {
		next, err := signature.NewVerifier(secrets.Next, opts...)
		if err != nil {
			return nil, fmt.Errorf("next signing secret: %w", err)
		}
		a.verifiers = append(a.verifiers, next)
	}

	return a, nil
}

// Verify authenticates a request. A signature that fails against the
// current secret is retried against the next secret, if configured.
func (a *Authenticator) Verify(r *http.Request) (*signature.Result, error) {
	result, err := a.verifiers[0].VerifyRequest(r, a.maxBody)
	if err == nil || len(a.verifiers) == 1 || signature.KindOf(err) != signature.KindInvalidSignature {
		return result, err
	}

	// The body was restored by the first verifier and is within the limit
	body, readErr := rawbody.Read(r, 0)
	if readErr != nil {
		return nil, &signature.Error{Kind: signature.KindBodyReadError, Err: readErr}
	}

	for _, v := range a.verifiers[1:] {
		if result, nextErr := v.Verify(r.Header, body); nextErr == nil {
			return result, nil
		}
	}

	return nil, err
}

// Middleware returns an HTTP middleware that authenticates webhook requests
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestLogger := logging.LogWithRequestID(a.logger, logging.RequestIDFromContext(r.Context())).
			WithField("remote_addr", r.RemoteAddr)

		result, err := a.Verify(r)
		duration := time.Since(start)

		if err != nil {
			kind := signature.KindOf(err)
			metrics.RecordVerification(kind.String(), duration.Seconds())
			metrics.RecordDelivery(string(models.DeliveryStatusRejected))
			logging.LogRejection(requestLogger, err)
			writeError(w, StatusForKind(kind), kind.String())
			return
		}

		metrics.RecordVerification(outcomeVerified, duration.Seconds())
		metrics.RecordSignatureAge(float64(a.now().Unix()) - float64(result.Timestamp))

		requestLogger.WithFields(logrus.Fields(result.Metadata.Fields())).
			WithField("signed_at", result.Timestamp).
			Debug("Webhook authenticated")

		next.ServeHTTP(w, r.WithContext(ContextWithResult(r.Context(), result)))
	})
}

// StatusForKind maps a rejection kind to an HTTP status code
func StatusForKind(kind signature.ErrorKind) int {
	switch kind {
	case signature.KindBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case signature.KindBodyReadError:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

// ContextWithResult stores a verification result on ctx
func ContextWithResult(ctx context.Context, result *signature.Result) context.Context {
	return context.WithValue(ctx, resultKey{}, result)
}

// ResultFromContext returns the verification result for an authenticated
// request
func ResultFromContext(ctx context.Context) (*signature.Result, bool) {
	result, ok := ctx.Value(resultKey{}).(*signature.Result)
	return result, ok && result != nil
}

func writeError(w http.ResponseWriter, status int, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind})
}
