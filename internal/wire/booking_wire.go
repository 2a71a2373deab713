package wire

import (
	"photo-dispatch/internal/adaptor"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/middleware"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// Participants only; the service checks which side may do what.
	r.Route("/api/bookings/{id}", func(r chi.Router) {
		r.Use(middleware.RequireRole(log, utils.RoleGuest, utils.RolePhotographer, utils.RoleAdmin))

		r.Get("/", bookingHandler.GetBooking)
		r.Post("/start", bookingHandler.StartBooking)
		r.Post("/confirm-delivery", bookingHandler.ConfirmDelivery)
		r.Post("/cancel", bookingHandler.CancelBooking)
	})
}
