package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/pkg/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService raises typed events toward users. Notify never fails
// the caller: delivery problems are logged and the transition stands.
type NotificationService interface {
	Notify(ctx context.Context, event entity.Event)
	Subscribe(userID uuid.UUID) *notify.Subscription
	Unread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID uuid.UUID) error
}

type notificationService struct {
	channel notify.Channel
	counter notify.Counter
	now     func() time.Time
	log     *zap.Logger
}

func NewNotificationService(channel notify.Channel, counter notify.Counter, now func() time.Time, log *zap.Logger) NotificationService {
	return &notificationService{
		channel: channel,
		counter: counter,
		now:     now,
		log:     log.With(zap.String("service", "notification")),
	}
}

func (s *notificationService) Notify(ctx context.Context, event entity.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	// Counted before delivery so the badge survives a channel outage.
	if _, err := s.counter.Incr(ctx, event.UserID.String()); err != nil {
		s.logFailure("increment unread counter", event, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.logFailure("marshal event", event, err)
		return
	}

	msg := notify.Message{
		ID:        event.ID.String(),
		UserID:    event.UserID.String(),
		Type:      string(event.Type),
		Body:      body,
		CreatedAt: event.CreatedAt,
	}
	if err := s.channel.Publish(ctx, msg); err != nil {
		s.logFailure("publish event", event, err)
	}
}

func (s *notificationService) logFailure(op string, event entity.Event, err error) {
	s.log.Warn("Notification degraded",
		zap.Error(fmt.Errorf("%w: %s: %v", ErrExternalServiceUnavailable, op, err)),
		zap.String("event", string(event.Type)),
		zap.String("user_id", event.UserID.String()),
	)
}

func (s *notificationService) Subscribe(userID uuid.UUID) *notify.Subscription {
	return s.channel.Subscribe(userID.String())
}

func (s *notificationService) Unread(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.counter.Get(ctx, userID.String())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExternalServiceUnavailable, err)
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.counter.Reset(ctx, userID.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalServiceUnavailable, err)
	}
	return nil
}

func eventFor(userID uuid.UUID, t entity.EventType, req, booking *uuid.UUID, payload map[string]any) entity.Event {
	return entity.Event{
		Type:      t,
		UserID:    userID,
		RequestID: req,
		BookingID: booking,
		Payload:   payload,
	}
}
