package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/dto/response"
	"photo-dispatch/pkg/geo"
	"photo-dispatch/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResponseService records photographer answers and performs the accept race.
type ResponseService interface {
	RespondToOffer(ctx context.Context, requestID string, photographerID uuid.UUID, outcome entity.OfferOutcome) (*response.OfferResultResponse, error)
}

type responseService struct {
	repo     *repository.Repository
	engine   MatchingEngine
	escrow   EscrowService
	fees     *FeeCalculator
	notifier NotificationService
	events   EventPublisher
	now      func() time.Time
	log      *zap.Logger
}

func NewResponseService(
	repo *repository.Repository,
	engine MatchingEngine,
	escrow EscrowService,
	fees *FeeCalculator,
	notifier NotificationService,
	events EventPublisher,
	now func() time.Time,
	log *zap.Logger,
) ResponseService {
	return &responseService{
		repo:     repo,
		engine:   engine,
		escrow:   escrow,
		fees:     fees,
		notifier: notifier,
		events:   events,
		now:      now,
		log:      log.With(zap.String("service", "response")),
	}
}

func (s *responseService) RespondToOffer(ctx context.Context, requestID string, photographerID uuid.UUID, outcome entity.OfferOutcome) (*response.OfferResultResponse, error) {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return nil, NewValidationError(map[string]string{"id": "Must be a valid UUID"})
	}
	if outcome != entity.OutcomeAccept && outcome != entity.OutcomeDecline {
		return nil, NewValidationError(map[string]string{"outcome": "Must be one of: accept, decline"})
	}

	req, err := s.repo.Request.FindByID(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	if err := s.ensureOpen(ctx, req); err != nil {
		return nil, err
	}

	avail, err := s.repo.Availability.FindByPhotographerID(ctx, photographerID)
	if err != nil {
		return nil, err
	}
	if avail == nil {
		return nil, fmt.Errorf("photographer %s has no availability: %w", photographerID, ErrForbidden)
	}

	if outcome == entity.OutcomeDecline {
		return s.decline(ctx, req, avail)
	}
	return s.accept(ctx, req, avail)
}

// ensureOpen rejects terminal requests and lazily expires stale ones.
func (s *responseService) ensureOpen(ctx context.Context, req *entity.ShootRequest) error {
	switch req.Status {
	case entity.RequestStatusMatched:
		return ErrAlreadyMatched
	case entity.RequestStatusExpired:
		return ErrRequestExpired
	case entity.RequestStatusCancelled:
		return fmt.Errorf("request is cancelled: %w", ErrInvalidStateTransition)
	}
	if req.IsStale(s.now()) {
		s.expire(ctx, req)
		return ErrRequestExpired
	}
	return nil
}

func (s *responseService) expire(ctx context.Context, req *entity.ShootRequest) {
	ok, err := s.repo.Request.Expire(ctx, req.ID, s.now())
	if err != nil {
		s.log.Error("Failed to expire stale request", zap.Error(err))
		return
	}
	s.engine.Stop(req.ID)
	if ok {
		s.notifier.Notify(ctx, eventFor(req.GuestID, entity.EventRequestExpired, &req.ID, nil, map[string]any{"reason": "ttl"}))
	}
}

// offerStats returns latency since the offer and distance to the request.
// Without a local offer (another instance sent it) latency is unknown.
func (s *responseService) offerStats(req *entity.ShootRequest, avail *entity.PhotographerAvailability, now time.Time) (int64, float64, bool) {
	distance := geo.Distance(
		geo.Point{Lat: req.Latitude, Lng: req.Longitude},
		geo.Point{Lat: avail.Latitude, Lng: avail.Longitude},
	)
	offer, ok := s.engine.Offer(req.ID, avail.PhotographerID)
	if !ok {
		return 0, distance, false
	}
	return now.Sub(offer.SentAt).Milliseconds(), distance, true
}

func (s *responseService) decline(ctx context.Context, req *entity.ShootRequest, avail *entity.PhotographerAvailability) (*response.OfferResultResponse, error) {
	now := s.now()
	latency, distance, known := s.offerStats(req, avail, now)

	resp := &entity.OfferResponse{
		BaseSimple:     entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		RequestID:      req.ID,
		PhotographerID: avail.PhotographerID,
		Outcome:        entity.OutcomeDecline,
		DistanceMeters: distance,
		LatencyMs:      latency,
	}
	if err := s.repo.Response.Create(ctx, resp); err != nil {
		return nil, err
	}
	if known {
		if err := s.repo.Availability.RecordResponseLatency(ctx, avail.PhotographerID, latency); err != nil {
			s.log.Warn("Failed to record response latency", zap.Error(err))
		}
	}

	s.engine.Declined(req.ID, avail.PhotographerID)

	return &response.OfferResultResponse{RequestID: req.ID.String(), Outcome: entity.OutcomeDecline}, nil
}

func (s *responseService) accept(ctx context.Context, req *entity.ShootRequest, avail *entity.PhotographerAvailability) (*response.OfferResultResponse, error) {
	if !avail.IsOnline || !avail.AcceptingRequests {
		return nil, fmt.Errorf("photographer %s is not taking requests: %w", avail.PhotographerID, ErrForbidden)
	}
	if avail.CurrentBookingID != nil {
		return nil, ErrAlreadyMatched
	}

	rate, ok := avail.Rates.Rate(req.Type, req.DurationMinutes)
	if !ok {
		return nil, NewValidationError(map[string]string{
			"rates": fmt.Sprintf("No posted rate for %s/%d", req.Type, req.DurationMinutes),
		})
	}

	now := s.now()
	fees := s.fees.Compute(rate, req.Urgency, now)
	if !fees.Consistent() {
		reportIntegrity(ctx, s.events, s.log, "fee components do not sum", nil, &req.ID, now)
		return nil, ErrIntegrityViolation
	}

	latency, distance, known := s.offerStats(req, avail, now)

	booking := &entity.Booking{
		Base:           entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Code:           utils.GenerateBookingCode(now),
		RequestID:      req.ID,
		PhotographerID: avail.PhotographerID,
		GuestID:        req.GuestID,
		Status:         entity.BookingStatusMatched,
		Fees:           fees,
		PaymentStatus:  entity.PaymentStatusPending,
	}

	err := s.repo.Match.Accept(ctx, repository.AcceptParams{
		Booking: booking,
		Response: &entity.OfferResponse{
			BaseSimple:     entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			RequestID:      req.ID,
			PhotographerID: avail.PhotographerID,
			Outcome:        entity.OutcomeAccept,
			DistanceMeters: distance,
			LatencyMs:      latency,
		},
		Escrow: &entity.EscrowTransaction{
			BookingID:        booking.ID,
			PaymentMethod:    req.PaymentMethod,
			AuthorizedAmount: fees.TotalAmount,
			AuthorizeKey:     entity.IdempotencyKey(booking.ID, entity.EscrowAuthorize),
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		Now: now,
	})
	if err != nil {
		return nil, s.acceptFailure(ctx, req, avail.PhotographerID, err)
	}

	s.engine.Matched(req.ID)
	if known {
		if err := s.repo.Availability.RecordResponseLatency(ctx, avail.PhotographerID, latency); err != nil {
			s.log.Warn("Failed to record response latency", zap.Error(err))
		}
	}

	s.log.Info("Request matched",
		zap.String("request_id", req.ID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("photographer_id", avail.PhotographerID.String()),
		zap.Int64("total_amount", fees.TotalAmount),
	)

	if err := s.escrow.Authorize(ctx, booking, req.PaymentMethod); err != nil {
		s.revert(ctx, req, booking, err)
		return nil, err
	}

	payload := map[string]any{
		"booking_code": booking.Code,
		"total_amount": booking.TotalAmount,
	}
	s.notifier.Notify(ctx, eventFor(req.GuestID, entity.EventMatchFound, &req.ID, &booking.ID, payload))
	s.notifier.Notify(ctx, eventFor(avail.PhotographerID, entity.EventMatchFound, &req.ID, &booking.ID, map[string]any{
		"booking_code": booking.Code,
		"earnings":     booking.PhotographerEarnings,
	}))
	publishEvent(ctx, s.events, s.log, DomainEvent{
		Event:      "booking.matched",
		OccurredAt: now,
		BookingID:  &booking.ID,
		RequestID:  &req.ID,
		Data:       map[string]any{"photographer_id": avail.PhotographerID, "total_amount": booking.TotalAmount},
	})

	out := response.BookingToResponse(booking)
	return &response.OfferResultResponse{RequestID: req.ID.String(), Outcome: entity.OutcomeAccept, Booking: &out}, nil
}

// acceptFailure maps a lost or rejected claim to its domain error. Losing the
// race is routine: the photographer stays in the pool.
func (s *responseService) acceptFailure(ctx context.Context, req *entity.ShootRequest, photographerID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, repository.ErrRequestMatched),
		errors.Is(err, repository.ErrPhotographerBusy),
		errors.Is(err, repository.ErrStaleState):
		s.engine.Declined(req.ID, photographerID)
		return ErrAlreadyMatched
	case errors.Is(err, repository.ErrRequestExpired):
		s.expire(ctx, req)
		return ErrRequestExpired
	case errors.Is(err, repository.ErrRequestClosed):
		return fmt.Errorf("request is cancelled: %w", ErrInvalidStateTransition)
	case errors.Is(err, repository.ErrRequestNotFound):
		return fmt.Errorf("request %s: %w", req.ID, ErrNotFound)
	default:
		return err
	}
}

// revert undoes a match whose hold failed and puts the request back in play
// when its TTL allows.
func (s *responseService) revert(ctx context.Context, req *entity.ShootRequest, booking *entity.Booking, cause error) {
	status, err := s.repo.Match.RevertAuthorization(ctx, repository.RevertParams{
		BookingID:      booking.ID,
		RequestID:      req.ID,
		PhotographerID: booking.PhotographerID,
		Reason:         cause.Error(),
		Now:            s.now(),
	})
	if err != nil {
		reportIntegrity(ctx, s.events, s.log, "authorization failed but match could not be reverted", &booking.ID, &req.ID, s.now())
		return
	}

	s.notifier.Notify(ctx, eventFor(req.GuestID, entity.EventPaymentFailed, &req.ID, &booking.ID, map[string]any{
		"stage":          "authorize",
		"request_status": status,
	}))
	s.notifier.Notify(ctx, eventFor(booking.PhotographerID, entity.EventBookingCancelled, &req.ID, &booking.ID, map[string]any{
		"reason": "payment_authorization_failed",
	}))

	switch status {
	case entity.RequestStatusPending:
		reopened := *req
		reopened.Status = entity.RequestStatusPending
		s.engine.Start(&reopened)
	case entity.RequestStatusExpired:
		s.notifier.Notify(ctx, eventFor(req.GuestID, entity.EventRequestExpired, &req.ID, nil, map[string]any{"reason": "ttl"}))
	}
}
