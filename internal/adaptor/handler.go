package adaptor

import (
	"photo-dispatch/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Request      *RequestHandler
	Photographer *PhotographerHandler
	Booking      *BookingHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Request:      NewRequestHandler(service.Request, service.Response, log),
		Photographer: NewPhotographerHandler(service.Location, service.Booking, log),
		Booking:      NewBookingHandler(service.Booking, log),
		Notification: NewNotificationHandler(service.Notification, log),
		Admin:        NewAdminHandler(service.Dispute, log),
	}
}
