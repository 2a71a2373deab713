package usecase

import "photo-dispatch/pkg/utils"

// DispatchPolicy chooses which of the remaining ranked candidates receive
// the next round of offers. remaining is ordered best first.
type DispatchPolicy interface {
	Next(remaining []Candidate) []Candidate
	Name() string
}

// SequentialPolicy offers to one candidate at a time.
type SequentialPolicy struct{}

func (SequentialPolicy) Next(remaining []Candidate) []Candidate {
	if len(remaining) == 0 {
		return nil
	}
	return remaining[:1]
}

func (SequentialPolicy) Name() string { return "sequential" }

// BroadcastPolicy offers concurrently to every candidate scoring within Gap
// of the best remaining one, up to MaxBatch.
type BroadcastPolicy struct {
	Gap      float64
	MaxBatch int
}

func (p BroadcastPolicy) Next(remaining []Candidate) []Candidate {
	if len(remaining) == 0 {
		return nil
	}

	limit := max(1, p.MaxBatch)
	best := remaining[0].Score

	n := 0
	for _, c := range remaining {
		if n >= limit || best-c.Score > p.Gap {
			break
		}
		n++
	}
	return remaining[:n]
}

func (BroadcastPolicy) Name() string { return "broadcast" }

func NewDispatchPolicy(cfg utils.DispatchConfig) DispatchPolicy {
	if cfg.Mode == "broadcast" {
		return BroadcastPolicy{Gap: cfg.BroadcastGap, MaxBatch: cfg.BroadcastBatch}
	}
	return SequentialPolicy{}
}
