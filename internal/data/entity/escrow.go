package entity

import (
	"time"

	"github.com/google/uuid"
)

type EscrowOperation string

const (
	EscrowAuthorize EscrowOperation = "authorize"
	EscrowCapture   EscrowOperation = "capture"
	EscrowRefund    EscrowOperation = "refund"
)

// IdempotencyKey derives the processor key for one operation on one booking.
func IdempotencyKey(bookingID uuid.UUID, op EscrowOperation) string {
	return bookingID.String() + ":" + string(op)
}

// EscrowTransaction tracks the payment hold for a booking.
type EscrowTransaction struct {
	BookingID        uuid.UUID  `db:"booking_id"`
	PaymentMethod    string     `db:"payment_method"`
	AuthorizedAmount int64      `db:"authorized_amount"`
	CapturedAmount   int64      `db:"captured_amount"`
	RefundedAmount   int64      `db:"refunded_amount"`
	AuthorizationRef *string    `db:"authorization_ref"`
	AuthorizeKey     string     `db:"authorize_key"`
	CaptureKey       *string    `db:"capture_key"`
	RefundKey        *string    `db:"refund_key"`
	LastError        *string    `db:"last_error"`
	AuthorizedAt     *time.Time `db:"authorized_at"`
	CapturedAt       *time.Time `db:"captured_at"`
	RefundedAt       *time.Time `db:"refunded_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (e *EscrowTransaction) IsAuthorized() bool {
	return e.AuthorizationRef != nil && e.AuthorizedAt != nil
}

func (e *EscrowTransaction) IsCaptured() bool {
	return e.CapturedAt != nil
}
