package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventNewRequest       EventType = "new_request"
	EventMatchFound       EventType = "match_found"
	EventPaymentReceived  EventType = "payment_received"
	EventBookingCompleted EventType = "booking_completed"
	EventRequestExpired   EventType = "request_expired"
	EventBookingCancelled EventType = "booking_cancelled"
	EventPaymentFailed    EventType = "payment_failed"
)

// Event is what lands on a user's real-time channel.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	UserID    uuid.UUID      `json:"user_id"`
	RequestID *uuid.UUID     `json:"request_id,omitempty"`
	BookingID *uuid.UUID     `json:"booking_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
