package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/dto/response"
	"photo-dispatch/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Geocoder turns coordinates into a display address.
type Geocoder interface {
	Address(ctx context.Context, lat, lng float64) (string, error)
}

type RequestService interface {
	CreateRequest(ctx context.Context, guestID uuid.UUID, req *request.CreateShootRequest) (*response.RequestCreatedResponse, error)
	GetRequest(ctx context.Context, actor Actor, requestID string) (*response.RequestResponse, error)
	CancelRequest(ctx context.Context, actor Actor, requestID string) (*response.RequestResponse, error)
	// ExpireStale moves overdue pending requests to expired and reports how many.
	ExpireStale(ctx context.Context, limit int) (int, error)
}

type requestService struct {
	repo       *repository.Repository
	quota      QuotaService
	engine     MatchingEngine
	notifier   NotificationService
	geocoder   Geocoder
	geoTimeout time.Duration
	ttl        map[entity.Urgency]time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewRequestService(
	repo *repository.Repository,
	quota QuotaService,
	engine MatchingEngine,
	notifier NotificationService,
	geocoder Geocoder,
	cfg utils.DispatchConfig,
	geoTimeout time.Duration,
	now func() time.Time,
	log *zap.Logger,
) RequestService {
	return &requestService{
		repo:       repo,
		quota:      quota,
		engine:     engine,
		notifier:   notifier,
		geocoder:   geocoder,
		geoTimeout: geoTimeout,
		ttl: map[entity.Urgency]time.Duration{
			entity.UrgencyNow:         cfg.TTLNow,
			entity.UrgencyWithin30Min: cfg.TTLWithin30Min,
			entity.UrgencyWithin1Hour: cfg.TTLWithin1Hour,
		},
		now: now,
		log: log.With(zap.String("service", "request")),
	}
}

func (s *requestService) CreateRequest(ctx context.Context, guestID uuid.UUID, req *request.CreateShootRequest) (*response.RequestCreatedResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Debug("Create request validation failed", zap.Any("errors", errs))
		return nil, NewValidationError(errs)
	}

	key := s.quota.GuestKey(req.GuestPhone, req.GuestEmail)
	now := s.now()
	month := s.quota.MonthBucket(now)
	if _, err := s.quota.Check(ctx, key, month); err != nil {
		return nil, err
	}

	urgency := entity.Urgency(req.Urgency)
	shoot := &entity.ShootRequest{
		Base:            entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		GuestID:         guestID,
		GuestName:       strings.TrimSpace(req.GuestName),
		GuestPhone:      strings.TrimSpace(req.GuestPhone),
		Latitude:        *req.Latitude,
		Longitude:       *req.Longitude,
		Type:            entity.ShootType(req.Type),
		Urgency:         urgency,
		DurationMinutes: req.Duration,
		Budget:          req.Budget,
		PartySize:       req.PartySize,
		PaymentMethod:   req.PaymentMethod,
		Status:          entity.RequestStatusPending,
		ExpiresAt:       now.Add(s.ttl[urgency]),
	}
	if email := strings.TrimSpace(req.GuestEmail); email != "" {
		shoot.GuestEmail = &email
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		shoot.Notes = &notes
	}
	shoot.Address = s.lookupAddress(ctx, shoot.Latitude, shoot.Longitude)

	count, err := s.repo.Request.CreateWithUsage(ctx, shoot, key, month, s.quota.Cap())
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			return nil, ErrUsageLimitExceeded
		}
		return nil, err
	}

	s.log.Info("Shoot request created",
		zap.String("request_id", shoot.ID.String()),
		zap.String("type", string(shoot.Type)),
		zap.String("urgency", string(shoot.Urgency)),
		zap.Time("expires_at", shoot.ExpiresAt),
		zap.Int("usage", count),
	)

	s.engine.Start(shoot)

	return &response.RequestCreatedResponse{
		ID:         shoot.ID.String(),
		Status:     shoot.Status,
		ExpiresAt:  shoot.ExpiresAt,
		UsageCount: count,
		MonthlyCap: s.quota.Cap(),
	}, nil
}

// lookupAddress is best effort: any geocoder failure leaves the address empty.
func (s *requestService) lookupAddress(ctx context.Context, lat, lng float64) *string {
	if s.geocoder == nil {
		return nil
	}
	if s.geoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.geoTimeout)
		defer cancel()
	}
	addr, err := s.geocoder.Address(ctx, lat, lng)
	if err != nil || addr == "" {
		s.log.Debug("Reverse geocoding skipped", zap.Error(err))
		return nil
	}
	return &addr
}

func (s *requestService) load(ctx context.Context, actor Actor, requestID string) (*entity.ShootRequest, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, NewValidationError(map[string]string{"id": "Must be a valid UUID"})
	}
	req, err := s.repo.Request.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	if actor.Role != entity.ActorAdmin && req.GuestID != actor.ID {
		return nil, ErrForbidden
	}
	return req, nil
}

func (s *requestService) GetRequest(ctx context.Context, actor Actor, requestID string) (*response.RequestResponse, error) {
	req, err := s.load(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	if req.IsStale(s.now()) {
		if err := s.expire(ctx, req); err != nil {
			return nil, err
		}
	}

	out := response.RequestToResponse(req)
	return &out, nil
}

func (s *requestService) CancelRequest(ctx context.Context, actor Actor, requestID string) (*response.RequestResponse, error) {
	req, err := s.load(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.IsStale(now) {
		if err := s.expire(ctx, req); err != nil {
			return nil, err
		}
		return nil, ErrRequestExpired
	}
	if req.Status != entity.RequestStatusPending {
		return nil, fmt.Errorf("cancel from %s: %w", req.Status, ErrInvalidStateTransition)
	}

	ok, err := s.repo.Request.Cancel(ctx, req.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("request changed state: %w", ErrInvalidStateTransition)
	}
	s.engine.Stop(req.ID)

	s.log.Info("Shoot request cancelled", zap.String("request_id", req.ID.String()))

	req.Status = entity.RequestStatusCancelled
	req.UpdatedAt = now
	out := response.RequestToResponse(req)
	return &out, nil
}

// expire applies the lazy TTL check. req is updated in place.
func (s *requestService) expire(ctx context.Context, req *entity.ShootRequest) error {
	ok, err := s.repo.Request.Expire(ctx, req.ID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		// Someone else moved it first; report what is stored.
		current, err := s.repo.Request.FindByID(ctx, req.ID)
		if err != nil {
			return err
		}
		if current != nil {
			*req = *current
		}
		return nil
	}
	req.Status = entity.RequestStatusExpired
	s.expired(ctx, req)
	return nil
}

func (s *requestService) expired(ctx context.Context, req *entity.ShootRequest) {
	s.engine.Stop(req.ID)
	s.notifier.Notify(ctx, eventFor(req.GuestID, entity.EventRequestExpired, &req.ID, nil, map[string]any{"reason": "ttl"}))
}

func (s *requestService) ExpireStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.repo.Request.ExpireStale(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	for _, req := range stale {
		s.expired(ctx, req)
	}
	if len(stale) > 0 {
		s.log.Info("Expired stale requests", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}
