package signature

import (
	"net/http"
	"strconv"
)

// Header is the case-insensitive header lookup the extractor needs.
// http.Header satisfies it.
type Header interface {
	Values(key string) []string
}

// Metadata describes a delivery. None of these fields are covered by the
// signature, so they are informational only.
type Metadata struct {
	MessageID *string
	BatchID   *string
	Attempt   *int
}

// ExtractMetadata reads the delivery metadata headers. Absent or repeated
// headers yield nil fields, as does an attempt that is not an integer.
func ExtractMetadata(h Header) Metadata {
	var md Metadata
	if h == nil {
		return md
	}

	md.MessageID = singleValue(h, HeaderMessageID)
	md.BatchID = singleValue(h, HeaderBatchID)

	if raw := singleValue(h, HeaderAttempt); raw != nil {
		if attempt, err := strconv.Atoi(*raw); err == nil {
			md.Attempt = &attempt
		}
	}

	return md
}

func singleValue(h Header, key string) *string {
	values := h.Values(key)
	if len(values) != 1 {
		return nil
	}
	v := values[0]
	return &v
}

// ApplyTo writes the metadata back onto h, for senders and test doubles
func (m Metadata) ApplyTo(h http.Header) {
	if m.MessageID != nil {
		h.Set(HeaderMessageID, *m.MessageID)
	}
	if m.BatchID != nil {
		h.Set(HeaderBatchID, *m.BatchID)
	}
	if m.Attempt != nil {
		h.Set(HeaderAttempt, strconv.Itoa(*m.Attempt))
	}
}

// Fields flattens the metadata for structured logging
func (m Metadata) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, 3)
	if m.MessageID != nil {
		fields["message_id"] = *m.MessageID
	}
	if m.BatchID != nil {
		fields["batch_id"] = *m.BatchID
	}
	if m.Attempt != nil {
		fields["attempt"] = *m.Attempt
	}
	return fields
}
