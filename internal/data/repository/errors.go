package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Outcomes of conditional writes. Services translate these into domain errors.
var (
	ErrRequestMatched   = errors.New("request already matched")
	ErrRequestExpired   = errors.New("request expired")
	ErrRequestClosed    = errors.New("request no longer open")
	ErrRequestNotFound  = errors.New("request not found")
	ErrPhotographerBusy = errors.New("photographer already assigned")
	ErrQuotaExhausted   = errors.New("usage quota exhausted")
	ErrStaleState       = errors.New("row not in expected state")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
