package adaptor

import (
	"encoding/json"
	"net/http"

	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/usecase"
	"photo-dispatch/pkg/utils"

	"go.uber.org/zap"
)

type PhotographerHandler struct {
	location usecase.LocationService
	bookings usecase.BookingService
	log      *zap.Logger
}

func NewPhotographerHandler(location usecase.LocationService, bookings usecase.BookingService, log *zap.Logger) *PhotographerHandler {
	return &PhotographerHandler{
		location: location,
		bookings: bookings,
		log:      log.With(zap.String("handler", "photographer")),
	}
}

// UpdateAvailability handles PUT /api/photographers/me/availability
func (h *PhotographerHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.UpdateAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	out, err := h.location.UpdateAvailability(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update availability")
		return
	}

	utils.ResponseSuccess(w, "success", out)
}

// GetAvailability handles GET /api/photographers/me/availability
func (h *PhotographerHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	out, err := h.location.GetAvailability(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.log, err, "get availability")
		return
	}

	utils.ResponseSuccess(w, "success", out)
}

// GetMyBookings handles GET /api/photographers/me/bookings
func (h *PhotographerHandler) GetMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	bookings, err := h.bookings.ListPhotographerBookings(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, h.log, err, "list photographer bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}
