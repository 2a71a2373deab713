package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/dto/response"
	"photo-dispatch/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	shootTypes = map[entity.ShootType]bool{
		entity.ShootPortrait: true,
		entity.ShootCouple:   true,
		entity.ShootFamily:   true,
		entity.ShootGroup:    true,
		entity.ShootEvent:    true,
		entity.ShootProduct:  true,
	}
	durations = map[int]bool{15: true, 30: true, 60: true}
)

// LocationService is the photographer-facing writer of the location registry.
type LocationService interface {
	UpdateAvailability(ctx context.Context, photographerID uuid.UUID, req *request.UpdateAvailabilityRequest) (*response.AvailabilityResponse, error)
	GetAvailability(ctx context.Context, photographerID uuid.UUID) (*response.AvailabilityResponse, error)
}

type locationService struct {
	availability repository.AvailabilityRepository
	now          func() time.Time
	log          *zap.Logger
}

func NewLocationService(repo *repository.Repository, now func() time.Time, log *zap.Logger) LocationService {
	return &locationService{
		availability: repo.Availability,
		now:          now,
		log:          log.With(zap.String("service", "location")),
	}
}

func (s *locationService) UpdateAvailability(ctx context.Context, photographerID uuid.UUID, req *request.UpdateAvailabilityRequest) (*response.AvailabilityResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	rates, errs := parseRates(req.Rates)
	if len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	now := s.now()
	a := &entity.PhotographerAvailability{
		PhotographerID:    photographerID,
		Latitude:          *req.Latitude,
		Longitude:         *req.Longitude,
		AccuracyMeters:    req.AccuracyMeters,
		IsOnline:          *req.IsOnline,
		AcceptingRequests: *req.AcceptingRequests,
		ResponseRadiusM:   req.ResponseRadiusM,
		Rates:             rates,
		IdleSince:         now,
		UpdatedAt:         now,
	}
	if err := s.availability.Upsert(ctx, a); err != nil {
		return nil, err
	}

	s.log.Debug("Availability updated",
		zap.String("photographer_id", photographerID.String()),
		zap.Bool("online", a.IsOnline),
		zap.Bool("accepting", a.AcceptingRequests),
	)

	return s.GetAvailability(ctx, photographerID)
}

func (s *locationService) GetAvailability(ctx context.Context, photographerID uuid.UUID) (*response.AvailabilityResponse, error) {
	a, err := s.availability.FindByPhotographerID(ctx, photographerID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("availability for %s: %w", photographerID, ErrNotFound)
	}
	out := response.AvailabilityToResponse(a)
	return &out, nil
}

// parseRates checks every (type, duration) key and amount of a posted rate card.
func parseRates(raw map[string]map[string]int64) (entity.RateCard, map[string]string) {
	errs := make(map[string]string)
	rates := make(entity.RateCard, len(raw))

	for t, byDuration := range raw {
		st := entity.ShootType(t)
		if !shootTypes[st] {
			errs["rates."+t] = "Unknown shoot type"
			continue
		}
		card := make(map[string]int64, len(byDuration))
		for d, amount := range byDuration {
			minutes, err := strconv.Atoi(d)
			if err != nil || !durations[minutes] {
				errs["rates."+t+"."+d] = "Duration must be one of: 15 30 60"
				continue
			}
			if amount <= 0 {
				errs["rates."+t+"."+d] = "Amount must be positive"
				continue
			}
			card[strconv.Itoa(minutes)] = amount
		}
		rates[st] = card
	}

	return rates, errs
}
