package wire

import (
	"photo-dispatch/internal/adaptor"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/middleware"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePhotographer(
	r chi.Router,
	photographerHandler *adaptor.PhotographerHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/photographers/me", func(r chi.Router) {
		r.Use(middleware.RequireRole(log, utils.RolePhotographer))

		r.Put("/availability", photographerHandler.UpdateAvailability)
		r.Get("/availability", photographerHandler.GetAvailability)
		r.Get("/bookings", photographerHandler.GetMyBookings)
	})
}
