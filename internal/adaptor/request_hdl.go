package adaptor

import (
	"encoding/json"
	"net/http"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/internal/usecase"
	"photo-dispatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RequestHandler struct {
	service  usecase.RequestService
	response usecase.ResponseService
	log      *zap.Logger
}

func NewRequestHandler(service usecase.RequestService, response usecase.ResponseService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{
		service:  service,
		response: response,
		log:      log.With(zap.String("handler", "request")),
	}
}

// CreateRequest handles POST /api/requests (guest)
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateShootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	created, err := h.service.CreateRequest(r.Context(), actor.ID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create request")
		return
	}

	utils.ResponseCreated(w, "success", created)
}

// GetRequest handles GET /api/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	out, err := h.service.GetRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get request")
		return
	}

	utils.ResponseSuccess(w, "success", out)
}

// CancelRequest handles POST /api/requests/{id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	out, err := h.service.CancelRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "cancel request")
		return
	}

	utils.ResponseSuccess(w, "success", out)
}

// RespondToOffer handles POST /api/requests/{id}/responses (photographer)
func (h *RequestHandler) RespondToOffer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.RespondToOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	out, err := h.response.RespondToOffer(r.Context(), chi.URLParam(r, "id"), actor.ID, entity.OfferOutcome(req.Outcome))
	if err != nil {
		handleServiceError(w, h.log, err, "respond to offer")
		return
	}

	if out.Booking != nil {
		utils.ResponseCreated(w, "success", out)
		return
	}
	utils.ResponseSuccess(w, "success", out)
}
