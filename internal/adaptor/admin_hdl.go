package adaptor

import (
	"encoding/json"
	"net/http"

	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/usecase"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AdminHandler struct {
	service usecase.DisputeService
	log     *zap.Logger
}

func NewAdminHandler(service usecase.DisputeService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		log:     log.With(zap.String("handler", "admin")),
	}
}

// GetBooking handles GET /api/admin/bookings/{id} (admin only)
func (h *AdminHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetBookingDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get booking detail")
		return
	}

	utils.ResponseSuccess(w, "success", detail)
}

// ResolveDispute handles POST /api/admin/bookings/{id}/dispute (admin only)
func (h *AdminHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	admin, ok := actorFrom(r)
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	detail, err := h.service.ResolveDispute(r.Context(), admin, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "resolve dispute")
		return
	}

	utils.ResponseSuccess(w, "success", detail)
}
