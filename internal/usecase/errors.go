package usecase

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation                 = errors.New("validation failed")
	ErrUsageLimitExceeded         = errors.New("monthly request limit reached")
	ErrNoCandidatesAvailable      = errors.New("no photographers available nearby")
	ErrAlreadyMatched             = errors.New("request already matched")
	ErrRequestExpired             = errors.New("request expired")
	ErrInvalidStateTransition     = errors.New("invalid state transition")
	ErrPaymentAuthorizationFailed = errors.New("payment authorization failed")
	ErrPaymentCaptureFailed       = errors.New("payment capture failed")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrNotFound                   = errors.New("not found")
	ErrForbidden                  = errors.New("forbidden")
	ErrIntegrityViolation         = errors.New("data integrity violation")
)

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
