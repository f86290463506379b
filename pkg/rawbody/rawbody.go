// Package rawbody captures the exact bytes of a request body before any
// decoding, so signatures can be checked over what the sender hashed.
package rawbody

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrTooLarge = errors.New("request body exceeds limit")
	ErrRead     = errors.New("request body could not be read")
)

// Read returns the raw request body, reading at most limit bytes. A limit
// of zero or less means unbounded. The request body is replaced so later
// handlers can read it again.
func Read(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return []byte{}, nil
	}
	defer r.Body.Close()

	var reader io.Reader = r.Body
	if limit > 0 {
		// One extra byte tells an exact-limit body from an oversized one
		reader = io.LimitReader(r.Body, limit+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	if limit > 0 && int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, limit)
	}

	// Restore the body for later reading
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
