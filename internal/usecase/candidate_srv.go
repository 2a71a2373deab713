package usecase

import (
	"context"
	"sort"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/geo"
	"photo-dispatch/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Candidate struct {
	PhotographerID uuid.UUID
	DistanceMeters float64
	Rate           int64
	Score          float64
	IdleSince      time.Time
}

// CandidateFinder returns eligible photographers for a request, best first.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, req *entity.ShootRequest, exclude map[uuid.UUID]bool) ([]Candidate, error)
}

type candidateFinder struct {
	availability repository.AvailabilityRepository
	weights      utils.RankingConfig
	limit        int
	log          *zap.Logger
}

func NewCandidateFinder(availability repository.AvailabilityRepository, weights utils.RankingConfig, limit int, log *zap.Logger) CandidateFinder {
	return &candidateFinder{
		availability: availability,
		weights:      weights,
		limit:        limit,
		log:          log.With(zap.String("service", "candidate")),
	}
}

func (f *candidateFinder) FindCandidates(ctx context.Context, req *entity.ShootRequest, exclude map[uuid.UUID]bool) ([]Candidate, error) {
	center := geo.Point{Lat: req.Latitude, Lng: req.Longitude}
	// Each photographer sets their own radius, so the prefilter covers the widest one allowed.
	minLat, maxLat, minLng, maxLng := geo.Box(center, entity.MaxResponseRadiusM)

	rows, err := f.availability.FindEligibleInBox(ctx, repository.BoundingBox{
		MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, a := range rows {
		if exclude[a.PhotographerID] || !a.IsEligible() {
			continue
		}

		d := geo.Distance(center, geo.Point{Lat: a.Latitude, Lng: a.Longitude})
		if d > a.ResponseRadiusM {
			continue
		}

		rate, ok := a.Rates.Rate(req.Type, req.DurationMinutes)
		if !ok {
			continue
		}

		candidates = append(candidates, Candidate{
			PhotographerID: a.PhotographerID,
			DistanceMeters: d,
			Rate:           rate,
			Score:          f.score(d, a, rate, req.Budget),
			IdleSince:      a.IdleSince,
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoCandidatesAvailable
	}

	rankCandidates(candidates)
	if f.limit > 0 && len(candidates) > f.limit {
		candidates = candidates[:f.limit]
	}

	f.log.Debug("Candidates ranked",
		zap.String("request_id", req.ID.String()),
		zap.Int("count", len(candidates)),
	)

	return candidates, nil
}

func (f *candidateFinder) score(distance float64, a *entity.PhotographerAvailability, rate, budget int64) float64 {
	w := f.weights

	latency := w.DefaultLatency
	if a.ResponseCount > 0 {
		latency = time.Duration(a.AvgResponseMs) * time.Millisecond
	}

	return w.WeightDistance*inverseRatio(distance, w.SearchRadius) +
		w.WeightRating*clamp01(a.RatingAvg/5) +
		w.WeightLatency*inverseRatio(float64(latency), float64(w.MaxLatency)) +
		w.WeightPrice*priceFit(rate, budget)
}

// priceFit is 1 when the rate is within budget (or no budget was given),
// otherwise the fraction of the rate the budget covers.
func priceFit(rate, budget int64) float64 {
	if budget == 0 || rate <= budget {
		return 1
	}
	return float64(budget) / float64(rate)
}

func inverseRatio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return clamp01(1 - v/limit)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

const scoreEpsilon = 1e-9

// rankCandidates sorts by score, then longest idle first.
func rankCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if diff := c[i].Score - c[j].Score; diff > scoreEpsilon || diff < -scoreEpsilon {
			return diff > 0
		}
		return c[i].IdleSince.Before(c[j].IdleSince)
	})
}
