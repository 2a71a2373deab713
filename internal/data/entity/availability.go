package entity

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RateCard maps shoot type to duration minutes (as string keys, jsonb friendly) to amount.
type RateCard map[ShootType]map[string]int64

// Rate returns the posted rate for a shoot type and duration.
func (rc RateCard) Rate(t ShootType, durationMinutes int) (int64, bool) {
	byDuration, ok := rc[t]
	if !ok {
		return 0, false
	}
	amount, ok := byDuration[strconv.Itoa(durationMinutes)]
	return amount, ok
}

// MaxResponseRadiusM bounds how far a photographer may accept work from.
const MaxResponseRadiusM = 50000

// PhotographerAvailability is one row of the live location registry.
type PhotographerAvailability struct {
	PhotographerID    uuid.UUID  `db:"photographer_id"`
	Latitude          float64    `db:"latitude"`
	Longitude         float64    `db:"longitude"`
	AccuracyMeters    float64    `db:"accuracy_m"`
	IsOnline          bool       `db:"is_online"`
	AcceptingRequests bool       `db:"accepting_requests"`
	ResponseRadiusM   float64    `db:"response_radius_m"`
	Rates             RateCard   `db:"rates"`
	CurrentBookingID  *uuid.UUID `db:"current_booking_id"`
	RatingAvg         float64    `db:"rating_avg"`
	RatingCount       int        `db:"rating_count"`
	AvgResponseMs     int64      `db:"avg_response_ms"`
	ResponseCount     int        `db:"response_count"`
	IdleSince         time.Time  `db:"idle_since"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// IsEligible mirrors the candidate filter applied in SQL.
func (p *PhotographerAvailability) IsEligible() bool {
	return p.IsOnline && p.AcceptingRequests && p.CurrentBookingID == nil
}
