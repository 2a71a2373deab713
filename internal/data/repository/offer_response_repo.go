package repository

import (
	"context"
	"fmt"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OfferResponseRepository interface {
	Create(ctx context.Context, response *entity.OfferResponse) error
	FindByRequestID(ctx context.Context, requestID uuid.UUID) ([]*entity.OfferResponse, error)
}

type offerResponseRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOfferResponseRepository(db database.PgxIface, log *zap.Logger) OfferResponseRepository {
	return &offerResponseRepository{
		db:  db,
		log: log.With(zap.String("repository", "offer_response")),
	}
}

const insertOfferResponse = `
	INSERT INTO offer_responses (id, request_id, photographer_id, outcome, distance_m, latency_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func insertResponse(ctx context.Context, q database.Querier, resp *entity.OfferResponse) error {
	_, err := q.Exec(ctx, insertOfferResponse,
		resp.ID,
		resp.RequestID,
		resp.PhotographerID,
		resp.Outcome,
		resp.DistanceMeters,
		resp.LatencyMs,
		resp.CreatedAt,
	)
	return err
}

func (r *offerResponseRepository) Create(ctx context.Context, resp *entity.OfferResponse) error {
	if err := insertResponse(ctx, r.db, resp); err != nil {
		r.log.Error("Failed to create offer response",
			zap.Error(err),
			zap.String("request_id", resp.RequestID.String()),
			zap.String("photographer_id", resp.PhotographerID.String()),
		)
		return fmt.Errorf("create offer response: %w", err)
	}
	return nil
}

func (r *offerResponseRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) ([]*entity.OfferResponse, error) {
	query := `
		SELECT id, request_id, photographer_id, outcome, distance_m, latency_ms, created_at
		FROM offer_responses
		WHERE request_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		r.log.Error("Failed to find offer responses",
			zap.Error(err),
			zap.String("request_id", requestID.String()),
		)
		return nil, fmt.Errorf("find offer responses %s: %w", requestID.String(), err)
	}
	defer rows.Close()

	var responses []*entity.OfferResponse
	for rows.Next() {
		var resp entity.OfferResponse
		err := rows.Scan(
			&resp.ID,
			&resp.RequestID,
			&resp.PhotographerID,
			&resp.Outcome,
			&resp.DistanceMeters,
			&resp.LatencyMs,
			&resp.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan offer response row", zap.Error(err))
			return nil, fmt.Errorf("scan offer response row: %w", err)
		}
		responses = append(responses, &resp)
	}

	return responses, rows.Err()
}
