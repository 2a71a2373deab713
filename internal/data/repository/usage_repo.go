package repository

import (
	"context"
	"fmt"

	"photo-dispatch/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type UsageRepository interface {
	Count(ctx context.Context, guestKey, monthBucket string) (int, error)
}

type usageRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewUsageRepository(db database.PgxIface, log *zap.Logger) UsageRepository {
	return &usageRepository{
		db:  db,
		log: log.With(zap.String("repository", "usage")),
	}
}

func (r *usageRepository) Count(ctx context.Context, guestKey, monthBucket string) (int, error) {
	query := `SELECT count FROM usage_records WHERE guest_key = $1 AND month_bucket = $2`

	var count int
	err := r.db.QueryRow(ctx, query, guestKey, monthBucket).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		r.log.Error("Failed to read usage count",
			zap.Error(err),
			zap.String("month", monthBucket),
		)
		return 0, fmt.Errorf("read usage %s: %w", monthBucket, err)
	}

	return count, nil
}

// incrementUsage bumps the counter only while it is below limit.
// A missing RETURNING row means the cap was already reached.
func incrementUsage(ctx context.Context, q database.Querier, guestKey, monthBucket string, limit int) (int, error) {
	query := `
		INSERT INTO usage_records (guest_key, month_bucket, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (guest_key, month_bucket)
		DO UPDATE SET count = usage_records.count + 1
		WHERE usage_records.count < $3
		RETURNING count
	`

	var count int
	err := q.QueryRow(ctx, query, guestKey, monthBucket, limit).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, ErrQuotaExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("increment usage %s: %w", monthBucket, err)
	}

	return count, nil
}
