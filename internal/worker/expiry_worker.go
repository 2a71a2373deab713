package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type requestExpirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker sweeps pending requests whose TTL passed with nobody reading
// them. Reads expire lazily; this catches the rest.
type ExpiryWorker struct {
	requests requestExpirer
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewExpiryWorker(requests requestExpirer, interval time.Duration, batch int, log *zap.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch < 1 {
		batch = 100
	}
	return &ExpiryWorker{
		requests: requests,
		interval: interval,
		batch:    batch,
		log:      log.With(zap.String("worker", "expiry")),
	}
}

// Start blocks until ctx is done.
func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("Expiry worker started", zap.Duration("interval", w.interval))

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep drains overdue requests in batches so a backlog clears in one tick.
func (w *ExpiryWorker) sweep(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.requests.ExpireStale(ctx, w.batch)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error("Failed to expire stale requests", zap.Error(err))
			}
			return
		}
		total += n
		if n < w.batch {
			break
		}
	}
	if total > 0 {
		w.log.Debug("Expiry sweep finished", zap.Int("expired", total))
	}
}
