package request

type CreateShootRequest struct {
	GuestName     string   `json:"guest_name" validate:"required,max=100"`
	GuestPhone    string   `json:"guest_phone" validate:"required,e164"`
	GuestEmail    string   `json:"guest_email" validate:"omitempty,email,max=255"`
	PartySize     int      `json:"party_size" validate:"required,min=1,max=20"`
	Latitude      *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Type          string   `json:"type" validate:"required,oneof=portrait couple family group event product"`
	Urgency       string   `json:"urgency" validate:"required,oneof=now within_30min within_1hour"`
	Duration      int      `json:"duration" validate:"required,oneof=15 30 60"`
	Budget        int64    `json:"budget" validate:"gte=0"`
	Notes         string   `json:"notes" validate:"max=500"`
	PaymentMethod string   `json:"payment_method" validate:"required,max=255"`
}

type RespondToOfferRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=accept decline"`
}
