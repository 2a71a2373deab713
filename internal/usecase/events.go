package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher ships domain events to outside collaborators (dispute desk,
// analytics). Routing keys look like "booking.completed".
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type nopPublisher struct{}

func (nopPublisher) PublishJSON(context.Context, string, any) error { return nil }

// NopPublisher drops every event.
func NopPublisher() EventPublisher { return nopPublisher{} }

type DomainEvent struct {
	Event      string         `json:"event"`
	Version    int            `json:"version"`
	OccurredAt time.Time      `json:"occurred_at"`
	BookingID  *uuid.UUID     `json:"booking_id,omitempty"`
	RequestID  *uuid.UUID     `json:"request_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func publishEvent(ctx context.Context, pub EventPublisher, log *zap.Logger, ev DomainEvent) {
	ev.Version = 1
	if err := pub.PublishJSON(ctx, ev.Event, ev); err != nil {
		log.Warn("Failed to publish domain event",
			zap.String("event", ev.Event),
			zap.Error(err),
		)
	}
}

// reportIntegrity logs a broken invariant and hands it to the admin side.
// Nothing is corrected automatically.
func reportIntegrity(ctx context.Context, pub EventPublisher, log *zap.Logger, what string, bookingID, requestID *uuid.UUID, now time.Time) {
	fields := []zap.Field{zap.String("violation", what)}
	if bookingID != nil {
		fields = append(fields, zap.String("booking_id", bookingID.String()))
	}
	if requestID != nil {
		fields = append(fields, zap.String("request_id", requestID.String()))
	}
	log.Error("Data integrity violation", fields...)

	publishEvent(ctx, pub, log, DomainEvent{
		Event:      "integrity.violation",
		OccurredAt: now,
		BookingID:  bookingID,
		RequestID:  requestID,
		Data:       map[string]any{"violation": what},
	})
}
