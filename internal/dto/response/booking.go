package response

import (
	"time"

	"photo-dispatch/internal/data/entity"

	"github.com/google/uuid"
)

type BookingResponse struct {
	ID                   string               `json:"id"`
	Code                 string               `json:"code"`
	RequestID            string               `json:"request_id"`
	PhotographerID       string               `json:"photographer_id"`
	GuestID              string               `json:"guest_id"`
	Status               entity.BookingStatus `json:"status"`
	PaymentStatus        entity.PaymentStatus `json:"payment_status"`
	BaseAmount           int64                `json:"base_amount"`
	RushFee              int64                `json:"rush_fee"`
	HolidayFee           int64                `json:"holiday_fee"`
	NightFee             int64                `json:"night_fee"`
	TotalAmount          int64                `json:"total_amount"`
	PlatformFee          int64                `json:"platform_fee"`
	PhotographerEarnings int64                `json:"photographer_earnings"`
	IsRush               bool                 `json:"is_rush"`
	IsHoliday            bool                 `json:"is_holiday"`
	IsNight              bool                 `json:"is_night"`
	CancelledBy          *entity.ActorRole    `json:"cancelled_by,omitempty"`
	CancelReason         *string              `json:"cancel_reason,omitempty"`
	StartedAt            *time.Time           `json:"started_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	CancelledAt          *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
}

type EscrowResponse struct {
	AuthorizedAmount int64      `json:"authorized_amount"`
	CapturedAmount   int64      `json:"captured_amount"`
	RefundedAmount   int64      `json:"refunded_amount"`
	AuthorizationRef *string    `json:"authorization_ref,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
	AuthorizedAt     *time.Time `json:"authorized_at,omitempty"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
}

// AdminBookingResponse is what the dispute collaborator reads.
type AdminBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	Escrow  *EscrowResponse `json:"escrow,omitempty"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:                   b.ID.String(),
		Code:                 b.Code,
		RequestID:            b.RequestID.String(),
		PhotographerID:       b.PhotographerID.String(),
		GuestID:              b.GuestID.String(),
		Status:               b.Status,
		PaymentStatus:        b.PaymentStatus,
		BaseAmount:           b.BaseAmount,
		RushFee:              b.RushFee,
		HolidayFee:           b.HolidayFee,
		NightFee:             b.NightFee,
		TotalAmount:          b.TotalAmount,
		PlatformFee:          b.PlatformFee,
		PhotographerEarnings: b.PhotographerEarnings,
		IsRush:               b.IsRush,
		IsHoliday:            b.IsHoliday,
		IsNight:              b.IsNight,
		CancelledBy:          b.CancelledBy,
		CancelReason:         b.CancelReason,
		StartedAt:            b.StartedAt,
		CompletedAt:          b.CompletedAt,
		CancelledAt:          b.CancelledAt,
		CreatedAt:            b.CreatedAt,
	}
}

func EscrowToResponse(e *entity.EscrowTransaction) *EscrowResponse {
	if e == nil {
		return nil
	}
	return &EscrowResponse{
		AuthorizedAmount: e.AuthorizedAmount,
		CapturedAmount:   e.CapturedAmount,
		RefundedAmount:   e.RefundedAmount,
		AuthorizationRef: e.AuthorizationRef,
		LastError:        e.LastError,
		AuthorizedAt:     e.AuthorizedAt,
		CapturedAt:       e.CapturedAt,
		RefundedAt:       e.RefundedAt,
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
