package response

import (
	"time"

	"photo-dispatch/internal/data/entity"
)

type RequestCreatedResponse struct {
	ID         string               `json:"id"`
	Status     entity.RequestStatus `json:"status"`
	ExpiresAt  time.Time            `json:"expires_at"`
	UsageCount int                  `json:"usage_count"`
	MonthlyCap int                  `json:"monthly_cap"`
}

type RequestResponse struct {
	ID                    string               `json:"id"`
	Status                entity.RequestStatus `json:"status"`
	Type                  entity.ShootType     `json:"type"`
	Urgency               entity.Urgency       `json:"urgency"`
	Duration              int                  `json:"duration"`
	Budget                int64                `json:"budget"`
	PartySize             int                  `json:"party_size"`
	Latitude              float64              `json:"latitude"`
	Longitude             float64              `json:"longitude"`
	Address               *string              `json:"address,omitempty"`
	Notes                 *string              `json:"notes,omitempty"`
	MatchedPhotographerID *string              `json:"matched_photographer_id,omitempty"`
	BookingID             *string              `json:"booking_id,omitempty"`
	ExpiresAt             time.Time            `json:"expires_at"`
	CreatedAt             time.Time            `json:"created_at"`
}

type OfferResultResponse struct {
	RequestID string              `json:"request_id"`
	Outcome   entity.OfferOutcome `json:"outcome"`
	Booking   *BookingResponse    `json:"booking,omitempty"`
}

func RequestToResponse(r *entity.ShootRequest) RequestResponse {
	return RequestResponse{
		ID:                    r.ID.String(),
		Status:                r.Status,
		Type:                  r.Type,
		Urgency:               r.Urgency,
		Duration:              r.DurationMinutes,
		Budget:                r.Budget,
		PartySize:             r.PartySize,
		Latitude:              r.Latitude,
		Longitude:             r.Longitude,
		Address:               r.Address,
		Notes:                 r.Notes,
		MatchedPhotographerID: uuidString(r.MatchedPhotographerID),
		BookingID:             uuidString(r.BookingID),
		ExpiresAt:             r.ExpiresAt,
		CreatedAt:             r.CreatedAt,
	}
}
