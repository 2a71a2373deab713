package repository

import (
	"context"
	"fmt"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BoundingBox limits the candidate scan before exact distances are computed.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

type AvailabilityRepository interface {
	Upsert(ctx context.Context, availability *entity.PhotographerAvailability) error
	FindByPhotographerID(ctx context.Context, photographerID uuid.UUID) (*entity.PhotographerAvailability, error)
	FindEligibleInBox(ctx context.Context, box BoundingBox) ([]*entity.PhotographerAvailability, error)
	RecordResponseLatency(ctx context.Context, photographerID uuid.UUID, latencyMs int64) error
}

const availabilityColumns = `photographer_id, latitude, longitude, accuracy_m, is_online, accepting_requests,
	response_radius_m, rates, current_booking_id, rating_avg, rating_count, avg_response_ms,
	response_count, idle_since, updated_at`

type availabilityRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAvailabilityRepository(db database.PgxIface, log *zap.Logger) AvailabilityRepository {
	return &availabilityRepository{
		db:  db,
		log: log.With(zap.String("repository", "availability")),
	}
}

func scanAvailability(row pgx.Row) (*entity.PhotographerAvailability, error) {
	var a entity.PhotographerAvailability
	err := row.Scan(
		&a.PhotographerID,
		&a.Latitude,
		&a.Longitude,
		&a.AccuracyMeters,
		&a.IsOnline,
		&a.AcceptingRequests,
		&a.ResponseRadiusM,
		&a.Rates,
		&a.CurrentBookingID,
		&a.RatingAvg,
		&a.RatingCount,
		&a.AvgResponseMs,
		&a.ResponseCount,
		&a.IdleSince,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert is last-write-wins on the photographer row. Assignment, rating and
// latency history are owned by other writers and left untouched.
func (r *availabilityRepository) Upsert(ctx context.Context, a *entity.PhotographerAvailability) error {
	query := `
		INSERT INTO photographer_availability (
			photographer_id, latitude, longitude, accuracy_m, is_online, accepting_requests,
			response_radius_m, rates, idle_since, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (photographer_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy_m = EXCLUDED.accuracy_m,
			is_online = EXCLUDED.is_online,
			accepting_requests = EXCLUDED.accepting_requests,
			response_radius_m = EXCLUDED.response_radius_m,
			rates = EXCLUDED.rates,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		a.PhotographerID,
		a.Latitude,
		a.Longitude,
		a.AccuracyMeters,
		a.IsOnline,
		a.AcceptingRequests,
		a.ResponseRadiusM,
		a.Rates,
		a.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to upsert availability",
			zap.Error(err),
			zap.String("photographer_id", a.PhotographerID.String()),
		)
		return fmt.Errorf("upsert availability %s: %w", a.PhotographerID.String(), err)
	}

	return nil
}

func (r *availabilityRepository) FindByPhotographerID(ctx context.Context, photographerID uuid.UUID) (*entity.PhotographerAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM photographer_availability WHERE photographer_id = $1`

	a, err := scanAvailability(r.db.QueryRow(ctx, query, photographerID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find availability",
			zap.Error(err),
			zap.String("photographer_id", photographerID.String()),
		)
		return nil, fmt.Errorf("find availability %s: %w", photographerID.String(), err)
	}

	return a, nil
}

func (r *availabilityRepository) FindEligibleInBox(ctx context.Context, box BoundingBox) ([]*entity.PhotographerAvailability, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM photographer_availability
		WHERE is_online AND accepting_requests AND current_booking_id IS NULL
		  AND latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
	`

	rows, err := r.db.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		r.log.Error("Failed to query eligible photographers", zap.Error(err))
		return nil, fmt.Errorf("query eligible photographers: %w", err)
	}
	defer rows.Close()

	var out []*entity.PhotographerAvailability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			r.log.Error("Failed to scan availability row", zap.Error(err))
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

// RecordResponseLatency folds one observation into the running average.
func (r *availabilityRepository) RecordResponseLatency(ctx context.Context, photographerID uuid.UUID, latencyMs int64) error {
	query := `
		UPDATE photographer_availability
		SET avg_response_ms = (avg_response_ms * response_count + $2) / (response_count + 1),
		    response_count = response_count + 1
		WHERE photographer_id = $1
	`

	if _, err := r.db.Exec(ctx, query, photographerID, latencyMs); err != nil {
		r.log.Error("Failed to record response latency",
			zap.Error(err),
			zap.String("photographer_id", photographerID.String()),
		)
		return fmt.Errorf("record response latency %s: %w", photographerID.String(), err)
	}

	return nil
}
