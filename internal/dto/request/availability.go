package request

type UpdateAvailabilityRequest struct {
	Latitude          *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude         *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	AccuracyMeters    float64  `json:"accuracy_m" validate:"gte=0"`
	IsOnline          *bool    `json:"is_online" validate:"required"`
	AcceptingRequests *bool    `json:"accepting_requests" validate:"required"`
	ResponseRadiusM   float64  `json:"response_radius_m" validate:"required,gt=0,lte=50000"`
	// type -> duration minutes -> amount
	Rates map[string]map[string]int64 `json:"rates"`
}
