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

type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByPhotographerID(ctx context.Context, photographerID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByPhotographerID(ctx context.Context, photographerID uuid.UUID) (int64, error)

	// Start moves matched -> in_progress for the assigned photographer only.
	Start(ctx context.Context, id, photographerID uuid.UUID, now time.Time) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus, now time.Time) error
}

const bookingColumns = `id, code, request_id, photographer_id, guest_id, status,
	base_amount, rush_fee, holiday_fee, night_fee, total_amount, platform_fee, photographer_earnings,
	is_rush, is_holiday, is_night, payment_status, cancelled_by, cancel_reason,
	started_at, completed_at, cancelled_at, created_at, updated_at`

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.Code,
		&b.RequestID,
		&b.PhotographerID,
		&b.GuestID,
		&b.Status,
		&b.BaseAmount,
		&b.RushFee,
		&b.HolidayFee,
		&b.NightFee,
		&b.TotalAmount,
		&b.PlatformFee,
		&b.PhotographerEarnings,
		&b.IsRush,
		&b.IsHoliday,
		&b.IsNight,
		&b.PaymentStatus,
		&b.CancelledBy,
		&b.CancelReason,
		&b.StartedAt,
		&b.CompletedAt,
		&b.CancelledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func insertBooking(ctx context.Context, q database.Querier, b *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24)
	`

	_, err := q.Exec(ctx, query,
		b.ID,
		b.Code,
		b.RequestID,
		b.PhotographerID,
		b.GuestID,
		b.Status,
		b.BaseAmount,
		b.RushFee,
		b.HolidayFee,
		b.NightFee,
		b.TotalAmount,
		b.PlatformFee,
		b.PhotographerEarnings,
		b.IsRush,
		b.IsHoliday,
		b.IsNight,
		b.PaymentStatus,
		b.CancelledBy,
		b.CancelReason,
		b.StartedAt,
		b.CompletedAt,
		b.CancelledAt,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND deleted_at IS NULL`

	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return b, nil
}

func (r *bookingRepository) FindByPhotographerID(ctx context.Context, photographerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE photographer_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, photographerID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by photographer",
			zap.Error(err),
			zap.String("photographer_id", photographerID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings by photographer %s: %w", photographerID.String(), err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) CountByPhotographerID(ctx context.Context, photographerID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE photographer_id = $1 AND deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query, photographerID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by photographer",
			zap.Error(err),
			zap.String("photographer_id", photographerID.String()),
		)
		return 0, fmt.Errorf("count bookings by photographer %s: %w", photographerID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) Start(ctx context.Context, id, photographerID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'in_progress', started_at = $3, updated_at = $3
		WHERE id = $1 AND photographer_id = $2 AND status = 'matched'
	`

	tag, err := r.db.Exec(ctx, query, id, photographerID, now)
	if err != nil {
		r.log.Error("Failed to start booking",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return false, fmt.Errorf("start booking %s: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus, now time.Time) error {
	query := `UPDATE bookings SET payment_status = $2, updated_at = $3 WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, status, now); err != nil {
		r.log.Error("Failed to update booking payment status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("payment_status", string(status)),
		)
		return fmt.Errorf("update booking payment status %s: %w", id.String(), err)
	}

	return nil
}
