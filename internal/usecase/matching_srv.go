package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchingEngine walks a request's ranked candidates, one dispatch run per
// pending request.
type MatchingEngine interface {
	Start(req *entity.ShootRequest)
	Stop(requestID uuid.UUID)
	// Declined frees the photographer's offer slot so the run can advance.
	Declined(requestID, photographerID uuid.UUID)
	// Matched ends the run after a successful accept.
	Matched(requestID uuid.UUID)
	Offer(requestID, photographerID uuid.UUID) (Offer, bool)
	Running(requestID uuid.UUID) bool
	// Resume restarts runs for pending requests, e.g. after a deploy.
	Resume(ctx context.Context) (int, error)
	Shutdown()
}

type Offer struct {
	SentAt         time.Time
	DistanceMeters float64
}

type dispatchRun struct {
	requestID uuid.UUID
	cancel    context.CancelFunc
	declines  chan uuid.UUID

	mu     sync.Mutex
	offers map[uuid.UUID]Offer
}

type matchingEngine struct {
	repo       *repository.Repository
	finder     CandidateFinder
	policy     DispatchPolicy
	notifier   NotificationService
	window     time.Duration
	retryDelay time.Duration
	now        func() time.Time
	log        *zap.Logger

	mu     sync.Mutex
	runs   map[uuid.UUID]*dispatchRun
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMatchingEngine(
	repo *repository.Repository,
	finder CandidateFinder,
	policy DispatchPolicy,
	notifier NotificationService,
	window time.Duration,
	now func() time.Time,
	log *zap.Logger,
) MatchingEngine {
	ctx, cancel := context.WithCancel(context.Background())
	return &matchingEngine{
		repo:       repo,
		finder:     finder,
		policy:     policy,
		notifier:   notifier,
		window:     window,
		retryDelay: 5 * time.Second,
		now:        now,
		log:        log.With(zap.String("service", "matching"), zap.String("policy", policy.Name())),
		runs:       make(map[uuid.UUID]*dispatchRun),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (e *matchingEngine) Start(req *entity.ShootRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx.Err() != nil {
		return
	}
	if prev, ok := e.runs[req.ID]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(e.ctx)
	run := &dispatchRun{
		requestID: req.ID,
		cancel:    cancel,
		declines:  make(chan uuid.UUID, 16),
		offers:    make(map[uuid.UUID]Offer),
	}
	e.runs[req.ID] = run

	snapshot := *req
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish(run)
		e.dispatch(ctx, run, &snapshot)
	}()
}

func (e *matchingEngine) finish(run *dispatchRun) {
	run.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runs[run.requestID] == run {
		delete(e.runs, run.requestID)
	}
}

func (e *matchingEngine) lookup(requestID uuid.UUID) *dispatchRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[requestID]
}

func (e *matchingEngine) Stop(requestID uuid.UUID) {
	if run := e.lookup(requestID); run != nil {
		run.cancel()
	}
}

func (e *matchingEngine) Matched(requestID uuid.UUID) {
	e.Stop(requestID)
}

func (e *matchingEngine) Declined(requestID, photographerID uuid.UUID) {
	run := e.lookup(requestID)
	if run == nil {
		return
	}
	select {
	case run.declines <- photographerID:
	default:
		// the offer window still bounds the wait
	}
}

func (e *matchingEngine) Offer(requestID, photographerID uuid.UUID) (Offer, bool) {
	run := e.lookup(requestID)
	if run == nil {
		return Offer{}, false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	o, ok := run.offers[photographerID]
	return o, ok
}

func (e *matchingEngine) Running(requestID uuid.UUID) bool {
	return e.lookup(requestID) != nil
}

func (e *matchingEngine) Resume(ctx context.Context) (int, error) {
	pending, err := e.repo.Request.ListPending(ctx, e.now())
	if err != nil {
		return 0, err
	}
	for _, req := range pending {
		e.Start(req)
	}
	return len(pending), nil
}

func (e *matchingEngine) Shutdown() {
	e.cancel()
	e.wg.Wait()
}

func (e *matchingEngine) dispatch(ctx context.Context, run *dispatchRun, req *entity.ShootRequest) {
	log := e.log.With(zap.String("request_id", req.ID.String()))

	// Photographers who already answered this request are not asked again.
	exclude := make(map[uuid.UUID]bool)
	prior, err := e.repo.Response.FindByRequestID(ctx, req.ID)
	if err != nil {
		log.Warn("Could not load prior responses", zap.Error(err))
	}
	for _, r := range prior {
		exclude[r.PhotographerID] = true
	}

	var queue []Candidate
	for ctx.Err() == nil {
		if !e.now().Before(req.ExpiresAt) {
			e.expire(ctx, req, "ttl")
			return
		}

		if len(queue) == 0 {
			fresh, err := e.finder.FindCandidates(ctx, req, exclude)
			switch {
			case errors.Is(err, ErrNoCandidatesAvailable):
				e.expire(ctx, req, "exhausted")
				return
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				log.Error("Candidate search failed", zap.Error(err))
				if !e.sleep(ctx, min(e.retryDelay, req.ExpiresAt.Sub(e.now()))) {
					return
				}
				continue
			}
			queue = fresh
		}

		batch := e.policy.Next(queue)
		queue = queue[len(batch):]
		for _, c := range batch {
			exclude[c.PhotographerID] = true
		}

		if !e.offer(ctx, run, req, batch) {
			return
		}
	}
}

// offer sends one round and waits for it to resolve. It returns false when
// the run has been stopped.
func (e *matchingEngine) offer(ctx context.Context, run *dispatchRun, req *entity.ShootRequest, batch []Candidate) bool {
	sent := e.now()
	deadline := sent.Add(e.window)
	if req.ExpiresAt.Before(deadline) {
		deadline = req.ExpiresAt
	}

	run.mu.Lock()
	for _, c := range batch {
		run.offers[c.PhotographerID] = Offer{SentAt: sent, DistanceMeters: c.DistanceMeters}
	}
	run.mu.Unlock()

	for _, c := range batch {
		e.notifier.Notify(ctx, eventFor(c.PhotographerID, entity.EventNewRequest, &req.ID, nil, map[string]any{
			"type":       req.Type,
			"urgency":    req.Urgency,
			"duration":   req.DurationMinutes,
			"party_size": req.PartySize,
			"distance_m": math.Round(c.DistanceMeters),
			"rate":       c.Rate,
			"respond_by": deadline,
		}))
	}

	e.log.Debug("Offers sent",
		zap.String("request_id", req.ID.String()),
		zap.Int("batch", len(batch)),
		zap.Time("respond_by", deadline),
	)

	timer := time.NewTimer(deadline.Sub(e.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			e.recordTimeouts(ctx, run, req)
			return true
		case photographerID := <-run.declines:
			run.mu.Lock()
			delete(run.offers, photographerID)
			remaining := len(run.offers)
			run.mu.Unlock()
			if remaining == 0 {
				return true
			}
		}
	}
}

func (e *matchingEngine) recordTimeouts(ctx context.Context, run *dispatchRun, req *entity.ShootRequest) {
	run.mu.Lock()
	expired := run.offers
	run.offers = make(map[uuid.UUID]Offer)
	run.mu.Unlock()

	now := e.now()
	for photographerID, o := range expired {
		latency := now.Sub(o.SentAt).Milliseconds()
		resp := &entity.OfferResponse{
			BaseSimple:     entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			RequestID:      req.ID,
			PhotographerID: photographerID,
			Outcome:        entity.OutcomeTimeout,
			DistanceMeters: o.DistanceMeters,
			LatencyMs:      latency,
		}
		if err := e.repo.Response.Create(ctx, resp); err != nil {
			e.log.Warn("Failed to record offer timeout", zap.Error(err))
			continue
		}
		if err := e.repo.Availability.RecordResponseLatency(ctx, photographerID, latency); err != nil {
			e.log.Warn("Failed to record timeout latency", zap.Error(err))
		}
	}
}

func (e *matchingEngine) expire(ctx context.Context, req *entity.ShootRequest, reason string) {
	ok, err := e.repo.Request.Expire(ctx, req.ID, e.now())
	if err != nil {
		e.log.Error("Failed to expire request", zap.Error(err), zap.String("request_id", req.ID.String()))
		return
	}
	if !ok {
		return
	}

	e.log.Info("Request expired",
		zap.String("request_id", req.ID.String()),
		zap.String("reason", reason),
	)
	e.notifier.Notify(ctx, eventFor(req.GuestID, entity.EventRequestExpired, &req.ID, nil, map[string]any{
		"reason": reason,
	}))
}

func (e *matchingEngine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
