package adaptor

import (
	"fmt"
	"net/http"
	"time"

	"photo-dispatch/internal/dto/response"
	"photo-dispatch/internal/usecase"
	"photo-dispatch/pkg/utils"

	"go.uber.org/zap"
)

type NotificationHandler struct {
	service   usecase.NotificationService
	heartbeat time.Duration
	log       *zap.Logger
}

func NewNotificationHandler(service usecase.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		heartbeat: 25 * time.Second,
		log:       log.With(zap.String("handler", "notification")),
	}
}

// Stream handles GET /api/notifications/stream as server-sent events.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.ResponseInternalError(w, "Streaming unsupported")
		return
	}

	sub := h.service.Subscribe(userID)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Debug("Notification stream opened", zap.String("user_id", userID.String()))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("Notification stream closed", zap.String("user_id", userID.String()))
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case msg, open := <-sub.C:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", msg.ID, msg.Type, msg.Body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Unread handles GET /api/notifications/unread
func (h *NotificationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	n, err := h.service.Unread(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.log, err, "get unread count")
		return
	}

	utils.ResponseSuccess(w, "success", response.UnreadResponse{Unread: n})
}

// MarkRead handles POST /api/notifications/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.MarkRead(r.Context(), userID); err != nil {
		handleServiceError(w, h.log, err, "mark notifications read")
		return
	}

	utils.ResponseSuccess(w, "success", response.UnreadResponse{Unread: 0})
}
