package repository

import (
	"context"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type EscrowRepository interface {
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowTransaction, error)
	MarkAuthorized(ctx context.Context, bookingID uuid.UUID, ref string, now time.Time) error
	// RecordFailure stores the key used for op and the processor error.
	RecordFailure(ctx context.Context, bookingID uuid.UUID, op entity.EscrowOperation, key, reason string, now time.Time) error
}

type escrowRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEscrowRepository(db database.PgxIface, log *zap.Logger) EscrowRepository {
	return &escrowRepository{
		db:  db,
		log: log.With(zap.String("repository", "escrow")),
	}
}

func insertEscrow(ctx context.Context, q database.Querier, e *entity.EscrowTransaction) error {
	query := `
		INSERT INTO escrow_transactions (booking_id, payment_method, authorized_amount, authorize_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := q.Exec(ctx, query,
		e.BookingID,
		e.PaymentMethod,
		e.AuthorizedAmount,
		e.AuthorizeKey,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

func (r *escrowRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.EscrowTransaction, error) {
	query := `
		SELECT booking_id, payment_method, authorized_amount, captured_amount, refunded_amount,
		       authorization_ref, authorize_key, capture_key, refund_key, last_error,
		       authorized_at, captured_at, refunded_at, created_at, updated_at
		FROM escrow_transactions
		WHERE booking_id = $1
	`

	var e entity.EscrowTransaction
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&e.BookingID,
		&e.PaymentMethod,
		&e.AuthorizedAmount,
		&e.CapturedAmount,
		&e.RefundedAmount,
		&e.AuthorizationRef,
		&e.AuthorizeKey,
		&e.CaptureKey,
		&e.RefundKey,
		&e.LastError,
		&e.AuthorizedAt,
		&e.CapturedAt,
		&e.RefundedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find escrow",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find escrow %s: %w", bookingID.String(), err)
	}

	return &e, nil
}

func (r *escrowRepository) MarkAuthorized(ctx context.Context, bookingID uuid.UUID, ref string, now time.Time) error {
	query := `
		UPDATE escrow_transactions
		SET authorization_ref = $2, authorized_at = $3, last_error = NULL, updated_at = $3
		WHERE booking_id = $1
	`

	if _, err := r.db.Exec(ctx, query, bookingID, ref, now); err != nil {
		r.log.Error("Failed to mark escrow authorized",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return fmt.Errorf("mark escrow authorized %s: %w", bookingID.String(), err)
	}

	return nil
}

func (r *escrowRepository) RecordFailure(ctx context.Context, bookingID uuid.UUID, op entity.EscrowOperation, key, reason string, now time.Time) error {
	var query string
	switch op {
	case entity.EscrowCapture:
		query = `UPDATE escrow_transactions SET capture_key = $2, last_error = $3, updated_at = $4 WHERE booking_id = $1`
	case entity.EscrowRefund:
		query = `UPDATE escrow_transactions SET refund_key = $2, last_error = $3, updated_at = $4 WHERE booking_id = $1`
	default:
		query = `UPDATE escrow_transactions SET authorize_key = $2, last_error = $3, updated_at = $4 WHERE booking_id = $1`
	}

	if _, err := r.db.Exec(ctx, query, bookingID, key, reason, now); err != nil {
		r.log.Error("Failed to record escrow failure",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("operation", string(op)),
		)
		return fmt.Errorf("record escrow failure %s: %w", bookingID.String(), err)
	}

	return nil
}
