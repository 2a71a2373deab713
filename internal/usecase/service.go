package usecase

import (
	"time"

	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/notify"
	"photo-dispatch/pkg/payment"
	"photo-dispatch/pkg/utils"

	"go.uber.org/zap"
)

// Deps are the outside collaborators the services talk to.
type Deps struct {
	Processor payment.Processor
	Channel   notify.Channel
	Counter   notify.Counter
	Events    EventPublisher
	// Geocoder is optional.
	Geocoder Geocoder
	Clock    func() time.Time
}

type Service struct {
	Request      RequestService
	Response     ResponseService
	Booking      BookingService
	Dispute      DisputeService
	Location     LocationService
	Notification NotificationService
	Matching     MatchingEngine
}

func NewService(repo *repository.Repository, config *utils.Config, deps Deps, log *zap.Logger) *Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	events := deps.Events
	if events == nil {
		events = NopPublisher()
	}

	processor := payment.WithRetry(
		deps.Processor,
		payment.NewRetryManager(config.Payment.MaxAttempts, config.Payment.RetryBase),
		log,
	)

	notification := NewNotificationService(deps.Channel, deps.Counter, now, log)
	escrow := NewEscrowService(repo, processor, events, now, log)
	finder := NewCandidateFinder(repo.Availability, config.Ranking, config.Dispatch.CandidateLimit, log)
	engine := NewMatchingEngine(repo, finder, NewDispatchPolicy(config.Dispatch), notification, config.Dispatch.OfferWindow, now, log)
	quota := NewQuotaService(repo.Usage, config.Quota.MonthlyCap, config.Location(), log)
	fees := NewFeeCalculator(config.Fees, config.Location())

	return &Service{
		Request:      NewRequestService(repo, quota, engine, notification, deps.Geocoder, config.Dispatch, config.Geocode.Timeout, now, log),
		Response:     NewResponseService(repo, engine, escrow, fees, notification, events, now, log),
		Booking:      NewBookingService(repo, escrow, notification, events, now, log),
		Dispute:      NewDisputeService(repo, escrow, notification, events, now, log),
		Location:     NewLocationService(repo, now, log),
		Notification: notification,
		Matching:     engine,
	}
}
