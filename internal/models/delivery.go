package models

import (
	"time"

	"github.com/ricqchet/webhook-receiver/pkg/signature"
)

// Delivery is a verified webhook delivery waiting to be processed
type Delivery struct {
	// Request ID for tracing
	RequestID string

	// Signed unix timestamp from the signature header
	Timestamp uint64

	// Unsigned delivery metadata, informational only
	Metadata signature.Metadata

	// Raw request payload and its declared content type
	Body        []byte
	ContentType string

	// Timestamps
	ReceivedAt time.Time
	QueuedAt   time.Time
}

// MessageID returns the delivery's message id, or "" when the sender did
// not supply one
func (d *Delivery) MessageID() string {
	if d.Metadata.MessageID == nil {
		return ""
	}
	return *d.Metadata.MessageID
}

// Attempt returns the sender's attempt number, or 0 when unknown
func (d *Delivery) Attempt() int {
	if d.Metadata.Attempt == nil {
		return 0
	}
	return *d.Metadata.Attempt
}

// DeliveryStatus represents the outcome of handling a delivery
type DeliveryStatus string

const (
	DeliveryStatusAccepted  DeliveryStatus = "accepted"
	DeliveryStatusDuplicate DeliveryStatus = "duplicate"
	DeliveryStatusRejected  DeliveryStatus = "rejected"
	DeliveryStatusQueueFull DeliveryStatus = "queue_full"
	DeliveryStatusProcessed DeliveryStatus = "processed"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)
