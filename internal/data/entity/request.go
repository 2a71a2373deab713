package entity

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusMatched   RequestStatus = "matched"
	RequestStatusExpired   RequestStatus = "expired"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

type ShootType string

const (
	ShootPortrait ShootType = "portrait"
	ShootCouple   ShootType = "couple"
	ShootFamily   ShootType = "family"
	ShootGroup    ShootType = "group"
	ShootEvent    ShootType = "event"
	ShootProduct  ShootType = "product"
)

type Urgency string

const (
	UrgencyNow         Urgency = "now"
	UrgencyWithin30Min Urgency = "within_30min"
	UrgencyWithin1Hour Urgency = "within_1hour"
)

// ShootRequest is a guest's ad-hoc request for a nearby photographer.
type ShootRequest struct {
	Base
	GuestID               uuid.UUID     `db:"guest_id"`
	GuestName             string        `db:"guest_name"`
	GuestPhone            string        `db:"guest_phone"`
	GuestEmail            *string       `db:"guest_email"`
	Latitude              float64       `db:"latitude"`
	Longitude             float64       `db:"longitude"`
	Address               *string       `db:"address"`
	Type                  ShootType     `db:"shoot_type"`
	Urgency               Urgency       `db:"urgency"`
	DurationMinutes       int           `db:"duration_minutes"`
	Budget                int64         `db:"budget"`
	PartySize             int           `db:"party_size"`
	Notes                 *string       `db:"notes"`
	PaymentMethod         string        `db:"payment_method"`
	Status                RequestStatus `db:"status"`
	MatchedPhotographerID *uuid.UUID    `db:"matched_photographer_id"`
	BookingID             *uuid.UUID    `db:"booking_id"`
	ExpiresAt             time.Time     `db:"expires_at"`
}

// IsStale reports a pending request whose TTL has passed.
func (r *ShootRequest) IsStale(now time.Time) bool {
	return r.Status == RequestStatusPending && !now.Before(r.ExpiresAt)
}
