package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusMatched    BookingStatus = "matched"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// CanCancel reports whether either party may still cancel.
func (s BookingStatus) CanCancel() bool {
	return s == BookingStatusMatched || s == BookingStatusInProgress
}

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusFailed            PaymentStatus = "failed"
)

type ActorRole string

const (
	ActorGuest        ActorRole = "guest"
	ActorPhotographer ActorRole = "photographer"
	ActorAdmin        ActorRole = "admin"
	ActorSystem       ActorRole = "system"
)

// Fees holds the amounts frozen on a booking at match time.
type Fees struct {
	BaseAmount           int64 `db:"base_amount"`
	RushFee              int64 `db:"rush_fee"`
	HolidayFee           int64 `db:"holiday_fee"`
	NightFee             int64 `db:"night_fee"`
	TotalAmount          int64 `db:"total_amount"`
	PlatformFee          int64 `db:"platform_fee"`
	PhotographerEarnings int64 `db:"photographer_earnings"`
	IsRush               bool  `db:"is_rush"`
	IsHoliday            bool  `db:"is_holiday"`
	IsNight              bool  `db:"is_night"`
}

// Consistent checks the fee invariants.
func (f Fees) Consistent() bool {
	return f.BaseAmount+f.RushFee+f.HolidayFee+f.NightFee == f.TotalAmount &&
		f.PlatformFee+f.PhotographerEarnings == f.TotalAmount &&
		f.PlatformFee >= 0 && f.PhotographerEarnings >= 0
}

type Booking struct {
	Base
	Code           string        `db:"code"`
	RequestID      uuid.UUID     `db:"request_id"`
	PhotographerID uuid.UUID     `db:"photographer_id"`
	GuestID        uuid.UUID     `db:"guest_id"`
	Status         BookingStatus `db:"status"`
	Fees
	PaymentStatus PaymentStatus `db:"payment_status"`
	CancelledBy   *ActorRole    `db:"cancelled_by"`
	CancelReason  *string       `db:"cancel_reason"`
	StartedAt     *time.Time    `db:"started_at"`
	CompletedAt   *time.Time    `db:"completed_at"`
	CancelledAt   *time.Time    `db:"cancelled_at"`
}

// IsParticipant reports whether userID is the guest or the assigned photographer.
func (b *Booking) IsParticipant(userID uuid.UUID) bool {
	return b.GuestID == userID || b.PhotographerID == userID
}
