package recommend

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// Weights of the hybrid score. The first five sum to 100; an active boost
// adds a flat bonus on top.
const (
	WeightType       = 40.0
	WeightLocation   = 25.0
	WeightBudget     = 20.0
	WeightFreshness  = 10.0
	WeightPopularity = 5.0
	BoostBonus       = 15.0
)

// Score rates every candidate against the profile and returns them sorted by
// score descending, ties broken by ascending ad id. Freshness is relative to
// the newest and oldest candidate of this batch. views may be empty.
func Score(p *Profile, candidates []model.Ad, views map[int64]int, now time.Time) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	maxType := maxWeight(p.TypeWeights)
	maxLocation := maxWeight(p.LocationWeights)
	// Popularity is relative to the most viewed ad of the window, candidate
	// or not, so an ad's score does not move with what the user has seen.
	maxViews := 0
	for _, v := range views {
		maxViews = max(maxViews, v)
	}
	if maxViews <= 0 {
		maxViews = 1
	}

	newest, oldest := candidates[0].CreatedAt, candidates[0].CreatedAt
	for _, ad := range candidates[1:] {
		if ad.CreatedAt.After(newest) {
			newest = ad.CreatedAt
		}
		if ad.CreatedAt.Before(oldest) {
			oldest = ad.CreatedAt
		}
	}
	span := math.Max(1, newest.Sub(oldest).Seconds())
	sigma := math.Max((p.MaxPrice-p.MinPrice)/4, 1)

	for _, ad := range candidates {
		var b Breakdown
		b.Type = WeightType * p.TypeWeights[ad.TypeID] / maxType
		if ad.LocationGroupID != nil {
			b.Location = WeightLocation * p.LocationWeights[*ad.LocationGroupID] / maxLocation
		}
		if ad.Price > 0 && p.AvgPrice > 0 {
			z := math.Abs(ad.Price-p.AvgPrice) / sigma
			b.Budget = WeightBudget * math.Exp(-0.5*z*z)
		}
		b.Freshness = WeightFreshness * (1 - newest.Sub(ad.CreatedAt).Seconds()/span)
		b.Popularity = WeightPopularity * float64(views[ad.ID]) / float64(maxViews)
		if ad.BoostActive(now) {
			b.Boost = BoostBonus
		}

		total := b.Type + b.Location + b.Budget + b.Freshness + b.Popularity + b.Boost
		out = append(out, ScoredCandidate{Ad: ad, Score: round2(total), Breakdown: b})
	}

	slices.SortStableFunc(out, func(a, b ScoredCandidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Ad.ID, b.Ad.ID)
	})
	return out
}

// maxWeight is the largest weight, or 1 when there is none above zero.
func maxWeight(weights map[int64]float64) float64 {
	m := 0.0
	for _, w := range weights {
		m = math.Max(m, w)
	}
	if m <= 0 {
		return 1
	}
	return m
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
