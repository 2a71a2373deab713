package adaptor

import (
	"errors"
	"net/http"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/usecase"
	"photo-dispatch/pkg/utils"

	"go.uber.org/zap"
)

// errorStatus maps service sentinels to HTTP codes. Order matters only for
// errors that wrap more than one sentinel.
var errorStatus = []struct {
	err  error
	code int
}{
	{usecase.ErrValidation, http.StatusBadRequest},
	{usecase.ErrUsageLimitExceeded, http.StatusTooManyRequests},
	{usecase.ErrNoCandidatesAvailable, http.StatusNotFound},
	{usecase.ErrAlreadyMatched, http.StatusConflict},
	{usecase.ErrRequestExpired, http.StatusGone},
	{usecase.ErrInvalidStateTransition, http.StatusConflict},
	{usecase.ErrPaymentAuthorizationFailed, http.StatusPaymentRequired},
	{usecase.ErrPaymentCaptureFailed, http.StatusBadGateway},
	{usecase.ErrExternalServiceUnavailable, http.StatusServiceUnavailable},
	{usecase.ErrNotFound, http.StatusNotFound},
	{usecase.ErrForbidden, http.StatusForbidden},
	{usecase.ErrIntegrityViolation, http.StatusInternalServerError},
}

func statusFor(err error) (int, error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.code, m.err
		}
	}
	return http.StatusInternalServerError, nil
}

// handleServiceError writes the envelope for err and logs it at a level
// matching its severity.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	code, sentinel := statusFor(err)

	switch {
	case code == http.StatusBadRequest:
		log.Debug(operation+" validation failed", zap.Error(err))
		var verr *usecase.ValidationError
		if errors.As(err, &verr) {
			utils.ResponseBadRequest(w, "Validation failed", verr.Fields)
			return
		}
		utils.ResponseBadRequest(w, "Validation failed", nil)

	case sentinel == nil || code == http.StatusInternalServerError:
		log.Error("Failed to "+operation, zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")

	case errors.Is(err, usecase.ErrAlreadyMatched) || errors.Is(err, usecase.ErrRequestExpired):
		// Losing an accept race or answering late is routine under broadcast dispatch.
		log.Debug(operation+" lost", zap.Error(err))
		utils.ResponseError(w, code, sentinel.Error(), nil)

	case code >= http.StatusInternalServerError:
		log.Warn(operation+" failed upstream", zap.Error(err))
		utils.ResponseError(w, code, sentinel.Error(), nil)

	default:
		log.Warn(operation+" failed", zap.Error(err))
		utils.ResponseError(w, code, sentinel.Error(), nil)
	}
}

// actorFrom reads the caller placed in the context by middleware.Identity.
func actorFrom(r *http.Request) (usecase.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		return usecase.Actor{}, false
	}
	role, ok := utils.GetRoleFromContext(r.Context())
	if !ok {
		return usecase.Actor{}, false
	}
	return usecase.Actor{ID: userID, Role: entity.ActorRole(role)}, true
}
