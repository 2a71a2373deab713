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

type RequestRepository interface {
	// CreateWithUsage increments the guest's monthly usage and inserts the
	// request in one transaction. Returns the new usage count.
	CreateWithUsage(ctx context.Context, req *entity.ShootRequest, guestKey, monthBucket string, limit int) (int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ShootRequest, error)
	ListPending(ctx context.Context, now time.Time) ([]*entity.ShootRequest, error)

	// State transitions, all conditional on status = pending.
	Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]*entity.ShootRequest, error)
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

const requestColumns = `id, guest_id, guest_name, guest_phone, guest_email, latitude, longitude, address,
	shoot_type, urgency, duration_minutes, budget, party_size, notes, payment_method, status,
	matched_photographer_id, booking_id, expires_at, created_at, updated_at`

type requestRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewRequestRepository(db database.PgxIface, log *zap.Logger) RequestRepository {
	return &requestRepository{
		db:  db,
		log: log.With(zap.String("repository", "request")),
	}
}

func scanRequest(row pgx.Row) (*entity.ShootRequest, error) {
	var req entity.ShootRequest
	err := row.Scan(
		&req.ID,
		&req.GuestID,
		&req.GuestName,
		&req.GuestPhone,
		&req.GuestEmail,
		&req.Latitude,
		&req.Longitude,
		&req.Address,
		&req.Type,
		&req.Urgency,
		&req.DurationMinutes,
		&req.Budget,
		&req.PartySize,
		&req.Notes,
		&req.PaymentMethod,
		&req.Status,
		&req.MatchedPhotographerID,
		&req.BookingID,
		&req.ExpiresAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) CreateWithUsage(ctx context.Context, req *entity.ShootRequest, guestKey, monthBucket string, limit int) (int, error) {
	query := `
		INSERT INTO shoot_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	var count int
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		count, err = incrementUsage(ctx, tx, guestKey, monthBucket, limit)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, query,
			req.ID,
			req.GuestID,
			req.GuestName,
			req.GuestPhone,
			req.GuestEmail,
			req.Latitude,
			req.Longitude,
			req.Address,
			req.Type,
			req.Urgency,
			req.DurationMinutes,
			req.Budget,
			req.PartySize,
			req.Notes,
			req.PaymentMethod,
			req.Status,
			req.MatchedPhotographerID,
			req.BookingID,
			req.ExpiresAt,
			req.CreatedAt,
			req.UpdatedAt,
		)
		return err
	})

	if errors.Is(err, ErrQuotaExhausted) {
		return 0, ErrQuotaExhausted
	}
	if err != nil {
		r.log.Error("Failed to create request",
			zap.Error(err),
			zap.String("request_id", req.ID.String()),
		)
		return 0, fmt.Errorf("create request %s: %w", req.ID.String(), err)
	}

	return count, nil
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ShootRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM shoot_requests WHERE id = $1 AND deleted_at IS NULL`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find request by ID",
			zap.Error(err),
			zap.String("request_id", id.String()),
		)
		return nil, fmt.Errorf("find request by ID %s: %w", id.String(), err)
	}

	return req, nil
}

func (r *requestRepository) ListPending(ctx context.Context, now time.Time) ([]*entity.ShootRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM shoot_requests
		WHERE status = 'pending' AND expires_at > $1 AND deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		r.log.Error("Failed to list pending requests", zap.Error(err))
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.ShootRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			r.log.Error("Failed to scan request row", zap.Error(err))
			return nil, fmt.Errorf("scan request row: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func (r *requestRepository) Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE shoot_requests
		SET status = 'expired', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		r.log.Error("Failed to expire request",
			zap.Error(err),
			zap.String("request_id", id.String()),
		)
		return false, fmt.Errorf("expire request %s: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *requestRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]*entity.ShootRequest, error) {
	query := `
		UPDATE shoot_requests
		SET status = 'expired', updated_at = $1
		WHERE id IN (
			SELECT id FROM shoot_requests
			WHERE status = 'pending' AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		) AND status = 'pending'
		RETURNING ` + requestColumns

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to expire stale requests", zap.Error(err))
		return nil, fmt.Errorf("expire stale requests: %w", err)
	}
	defer rows.Close()

	var expired []*entity.ShootRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			r.log.Error("Failed to scan expired request", zap.Error(err))
			return nil, fmt.Errorf("scan expired request: %w", err)
		}
		expired = append(expired, req)
	}

	return expired, rows.Err()
}

func (r *requestRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE shoot_requests
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		r.log.Error("Failed to cancel request",
			zap.Error(err),
			zap.String("request_id", id.String()),
		)
		return false, fmt.Errorf("cancel request %s: %w", id.String(), err)
	}

	return tag.RowsAffected() == 1, nil
}
