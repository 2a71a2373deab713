package response

import (
	"time"

	"photo-dispatch/internal/data/entity"
)

type AvailabilityResponse struct {
	PhotographerID    string          `json:"photographer_id"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	IsOnline          bool            `json:"is_online"`
	AcceptingRequests bool            `json:"accepting_requests"`
	ResponseRadiusM   float64         `json:"response_radius_m"`
	Rates             entity.RateCard `json:"rates"`
	CurrentBookingID  *string         `json:"current_booking_id,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type UnreadResponse struct {
	Unread int64 `json:"unread"`
}

func AvailabilityToResponse(a *entity.PhotographerAvailability) AvailabilityResponse {
	return AvailabilityResponse{
		PhotographerID:    a.PhotographerID.String(),
		Latitude:          a.Latitude,
		Longitude:         a.Longitude,
		IsOnline:          a.IsOnline,
		AcceptingRequests: a.AcceptingRequests,
		ResponseRadiusM:   a.ResponseRadiusM,
		Rates:             a.Rates,
		CurrentBookingID:  uuidString(a.CurrentBookingID),
		UpdatedAt:         a.UpdatedAt,
	}
}
