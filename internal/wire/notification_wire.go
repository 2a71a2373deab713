package wire

import (
	"photo-dispatch/internal/adaptor"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireNotification(
	r chi.Router,
	notificationHandler *adaptor.NotificationHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/stream", notificationHandler.Stream)
		r.Get("/unread", notificationHandler.Unread)
		r.Post("/read", notificationHandler.MarkRead)
	})
}
