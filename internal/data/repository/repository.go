package repository

import (
	"photo-dispatch/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Request      RequestRepository
	Availability AvailabilityRepository
	Response     OfferResponseRepository
	Booking      BookingRepository
	Escrow       EscrowRepository
	Usage        UsageRepository
	Match        MatchRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Request:      NewRequestRepository(db, log),
		Availability: NewAvailabilityRepository(db, log),
		Response:     NewOfferResponseRepository(db, log),
		Booking:      NewBookingRepository(db, log),
		Escrow:       NewEscrowRepository(db, log),
		Usage:        NewUsageRepository(db, log),
		Match:        NewMatchRepository(db, log),
	}
}
