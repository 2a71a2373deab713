package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// AcceptParams carries everything the accept transaction writes.
type AcceptParams struct {
	Booking  *entity.Booking
	Response *entity.OfferResponse
	Escrow   *entity.EscrowTransaction
	Now      time.Time
}

type RevertParams struct {
	BookingID      uuid.UUID
	RequestID      uuid.UUID
	PhotographerID uuid.UUID
	Reason         string
	Now            time.Time
}

type CompleteParams struct {
	BookingID      uuid.UUID
	PhotographerID uuid.UUID
	CapturedAmount int64
	CaptureKey     string
	Rating         *int
	Now            time.Time
}

type CancelParams struct {
	BookingID      uuid.UUID
	PhotographerID uuid.UUID
	From           []entity.BookingStatus
	By             entity.ActorRole
	Reason         string
	PaymentStatus  entity.PaymentStatus
	RefundedAmount int64
	RefundKey      string
	Now            time.Time
}

// MatchRepository owns the multi-row transitions that must commit together.
type MatchRepository interface {
	// Accept claims a pending request for one photographer. Exactly one
	// concurrent caller wins; the rest get ErrRequestMatched,
	// ErrRequestExpired or ErrPhotographerBusy.
	Accept(ctx context.Context, p AcceptParams) error
	// RevertAuthorization undoes a match whose payment hold failed and
	// reports the status the request returned to.
	RevertAuthorization(ctx context.Context, p RevertParams) (entity.RequestStatus, error)
	Complete(ctx context.Context, p CompleteParams) (bool, error)
	Cancel(ctx context.Context, p CancelParams) (bool, error)
}

type matchRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewMatchRepository(db database.PgxIface, log *zap.Logger) MatchRepository {
	return &matchRepository{
		db:  db,
		log: log.With(zap.String("repository", "match")),
	}
}

func (r *matchRepository) Accept(ctx context.Context, p AcceptParams) error {
	b := p.Booking

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE shoot_requests
			SET status = 'matched', matched_photographer_id = $2, booking_id = $3, updated_at = $4
			WHERE id = $1 AND status = 'pending' AND expires_at > $4
		`, b.RequestID, b.PhotographerID, b.ID, p.Now)
		if err != nil {
			return fmt.Errorf("claim request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return requestClaimFailure(ctx, tx, b.RequestID, p.Now)
		}

		tag, err = tx.Exec(ctx, `
			UPDATE photographer_availability
			SET current_booking_id = $2, updated_at = $3
			WHERE photographer_id = $1 AND current_booking_id IS NULL
		`, b.PhotographerID, b.ID, p.Now)
		if err != nil {
			return fmt.Errorf("claim photographer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPhotographerBusy
		}

		if err := insertBooking(ctx, tx, b); err != nil {
			if isUniqueViolation(err) {
				return ErrRequestMatched
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		if err := insertResponse(ctx, tx, p.Response); err != nil {
			return fmt.Errorf("insert accept response: %w", err)
		}

		if err := insertEscrow(ctx, tx, p.Escrow); err != nil {
			return fmt.Errorf("insert escrow: %w", err)
		}

		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRequestMatched), errors.Is(err, ErrRequestExpired),
		errors.Is(err, ErrRequestClosed), errors.Is(err, ErrPhotographerBusy),
		errors.Is(err, ErrRequestNotFound):
		r.log.Debug("Accept lost",
			zap.String("request_id", b.RequestID.String()),
			zap.String("photographer_id", b.PhotographerID.String()),
			zap.String("reason", err.Error()),
		)
		return err
	default:
		r.log.Error("Failed to accept request",
			zap.Error(err),
			zap.String("request_id", b.RequestID.String()),
			zap.String("photographer_id", b.PhotographerID.String()),
		)
		return fmt.Errorf("accept request %s: %w", b.RequestID.String(), err)
	}
}

// requestClaimFailure explains why the conditional claim touched no row.
func requestClaimFailure(ctx context.Context, tx pgx.Tx, requestID uuid.UUID, now time.Time) error {
	var status entity.RequestStatus
	var expiresAt time.Time
	err := tx.QueryRow(ctx,
		`SELECT status, expires_at FROM shoot_requests WHERE id = $1`, requestID,
	).Scan(&status, &expiresAt)
	if err == pgx.ErrNoRows {
		return ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("read request state: %w", err)
	}

	switch status {
	case entity.RequestStatusMatched:
		return ErrRequestMatched
	case entity.RequestStatusCancelled:
		return ErrRequestClosed
	case entity.RequestStatusExpired:
		return ErrRequestExpired
	}
	if !now.Before(expiresAt) {
		return ErrRequestExpired
	}
	return ErrStaleState
}

func (r *matchRepository) RevertAuthorization(ctx context.Context, p RevertParams) (entity.RequestStatus, error) {
	var status entity.RequestStatus

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'cancelled', payment_status = 'failed', cancelled_by = 'system',
			    cancel_reason = $2, cancelled_at = $3, updated_at = $3
			WHERE id = $1 AND status = 'matched'
		`, p.BookingID, p.Reason, p.Now)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}

		if _, err := tx.Exec(ctx, `
			UPDATE photographer_availability
			SET current_booking_id = NULL, idle_since = $3, updated_at = $3
			WHERE photographer_id = $1 AND current_booking_id = $2
		`, p.PhotographerID, p.BookingID, p.Now); err != nil {
			return fmt.Errorf("release photographer: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE escrow_transactions SET last_error = $2, updated_at = $3 WHERE booking_id = $1
		`, p.BookingID, p.Reason, p.Now); err != nil {
			return fmt.Errorf("record escrow error: %w", err)
		}

		err = tx.QueryRow(ctx, `
			UPDATE shoot_requests
			SET status = CASE WHEN expires_at > $3 THEN 'pending' ELSE 'expired' END,
			    matched_photographer_id = NULL, booking_id = NULL, updated_at = $3
			WHERE id = $1 AND status = 'matched' AND booking_id = $2
			RETURNING status
		`, p.RequestID, p.BookingID, p.Now).Scan(&status)
		if err == pgx.ErrNoRows {
			return ErrStaleState
		}
		if err != nil {
			return fmt.Errorf("reopen request: %w", err)
		}
		return nil
	})

	if err != nil {
		r.log.Error("Failed to revert match",
			zap.Error(err),
			zap.String("booking_id", p.BookingID.String()),
			zap.String("request_id", p.RequestID.String()),
		)
		return "", fmt.Errorf("revert match %s: %w", p.BookingID.String(), err)
	}

	return status, nil
}

func (r *matchRepository) Complete(ctx context.Context, p CompleteParams) (bool, error) {
	completed := false

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'completed', payment_status = 'paid', completed_at = $2, updated_at = $2
			WHERE id = $1 AND status = 'in_progress'
		`, p.BookingID, p.Now)
		if err != nil {
			return fmt.Errorf("complete booking: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE escrow_transactions
			SET captured_amount = $2, capture_key = $3, captured_at = $4, last_error = NULL, updated_at = $4
			WHERE booking_id = $1
		`, p.BookingID, p.CapturedAmount, p.CaptureKey, p.Now); err != nil {
			return fmt.Errorf("record capture: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE photographer_availability
			SET current_booking_id = NULL, idle_since = $3, updated_at = $3
			WHERE photographer_id = $1 AND current_booking_id = $2
		`, p.PhotographerID, p.BookingID, p.Now); err != nil {
			return fmt.Errorf("release photographer: %w", err)
		}

		if p.Rating != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE photographer_availability
				SET rating_avg = (rating_avg * rating_count + $2) / (rating_count + 1),
				    rating_count = rating_count + 1
				WHERE photographer_id = $1
			`, p.PhotographerID, *p.Rating); err != nil {
				return fmt.Errorf("record rating: %w", err)
			}
		}

		completed = true
		return nil
	})

	if err != nil {
		r.log.Error("Failed to complete booking",
			zap.Error(err),
			zap.String("booking_id", p.BookingID.String()),
		)
		return false, fmt.Errorf("complete booking %s: %w", p.BookingID.String(), err)
	}

	return completed, nil
}

func (r *matchRepository) Cancel(ctx context.Context, p CancelParams) (bool, error) {
	from := make([]string, len(p.From))
	for i, s := range p.From {
		from[i] = string(s)
	}

	cancelled := false

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'cancelled', payment_status = $2, cancelled_by = $3, cancel_reason = $4,
			    cancelled_at = $5, updated_at = $5
			WHERE id = $1 AND status = ANY($6)
		`, p.BookingID, p.PaymentStatus, p.By, p.Reason, p.Now, from)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if p.RefundKey != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE escrow_transactions
				SET refunded_amount = refunded_amount + $2, refund_key = $3, refunded_at = $4,
				    last_error = NULL, updated_at = $4
				WHERE booking_id = $1
			`, p.BookingID, p.RefundedAmount, p.RefundKey, p.Now); err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE photographer_availability
			SET current_booking_id = NULL, idle_since = $3, updated_at = $3
			WHERE photographer_id = $1 AND current_booking_id = $2
		`, p.PhotographerID, p.BookingID, p.Now); err != nil {
			return fmt.Errorf("release photographer: %w", err)
		}

		cancelled = true
		return nil
	})

	if err != nil {
		r.log.Error("Failed to cancel booking",
			zap.Error(err),
			zap.String("booking_id", p.BookingID.String()),
		)
		return false, fmt.Errorf("cancel booking %s: %w", p.BookingID.String(), err)
	}

	return cancelled, nil
}
