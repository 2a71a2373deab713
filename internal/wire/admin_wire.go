package wire

import (
	"photo-dispatch/internal/adaptor"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/middleware"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAdmin(
	r chi.Router,
	adminHandler *adaptor.AdminHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/admin/bookings/{id}", func(r chi.Router) {
		r.Use(middleware.RequireRole(log, utils.RoleAdmin))

		// GET /api/admin/bookings/{id} - booking with its escrow
		r.Get("/", adminHandler.GetBooking)

		// POST /api/admin/bookings/{id}/dispute - refund or release
		r.Post("/dispute", adminHandler.ResolveDispute)
	})
}
