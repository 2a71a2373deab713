package entity

import (
	"github.com/google/uuid"
)

type OfferOutcome string

const (
	OutcomeAccept  OfferOutcome = "accept"
	OutcomeDecline OfferOutcome = "decline"
	OutcomeTimeout OfferOutcome = "timeout"
)

// OfferResponse records how a photographer answered an offer. Never updated.
type OfferResponse struct {
	BaseSimple
	RequestID      uuid.UUID    `db:"request_id"`
	PhotographerID uuid.UUID    `db:"photographer_id"`
	Outcome        OfferOutcome `db:"outcome"`
	DistanceMeters float64      `db:"distance_m"`
	LatencyMs      int64        `db:"latency_ms"`
}
