package wire

import (
	"photo-dispatch/internal/adaptor"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/middleware"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireRequest(
	r chi.Router,
	requestHandler *adaptor.RequestHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/requests", func(r chi.Router) {
		// POST /api/requests - guest asks for a photographer
		r.With(middleware.RequireRole(log, utils.RoleGuest)).Post("/", requestHandler.CreateRequest)

		r.Route("/{id}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(log, utils.RoleGuest, utils.RoleAdmin))

				r.Get("/", requestHandler.GetRequest)
				r.Post("/cancel", requestHandler.CancelRequest)
			})

			// POST /api/requests/{id}/responses - accept or decline an offer
			r.With(middleware.RequireRole(log, utils.RolePhotographer)).Post("/responses", requestHandler.RespondToOffer)
		})
	})
}
