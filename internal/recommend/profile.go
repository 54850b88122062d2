package recommend

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// ln(2) truncated the way the decay has always been computed.
const decayLn2 = 0.693

// ProfileBuilder derives a Profile from a user's recent interactions.
type ProfileBuilder struct {
	interactions InteractionStore
	catalog      AdCatalog
	depth        int
	halfLifeDays float64
	now          func() time.Time
}

// NewProfileBuilder returns a builder reading through the given stores.
func NewProfileBuilder(interactions InteractionStore, catalog AdCatalog, settings Settings, now func() time.Time) *ProfileBuilder {
	if now == nil {
		now = time.Now
	}
	return &ProfileBuilder{
		interactions: interactions,
		catalog:      catalog,
		depth:        settings.ProfileDepth,
		halfLifeDays: settings.HalfLifeDays,
		now:          now,
	}
}

// Build returns the user's profile, or nil when the user has no usable
// history: no profile-relevant interactions, or none on an ad with a
// positive price. A nil profile with a nil error routes to cold start.
func (b *ProfileBuilder) Build(ctx context.Context, userID int64) (*Profile, error) {
	recent, err := b.interactions.RecentInteractions(ctx, userID, model.ProfileTypes(), b.depth)
	if err != nil {
		return nil, fmt.Errorf("recent interactions: %w", err)
	}
	if len(recent) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(recent))
	queued := make(map[int64]struct{}, len(recent))
	for _, in := range recent {
		if in.AdID == nil {
			continue
		}
		if _, ok := queued[*in.AdID]; ok {
			continue
		}
		queued[*in.AdID] = struct{}{}
		ids = append(ids, *in.AdID)
	}

	resolved, err := b.catalog.AdsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve interacted ads: %w", err)
	}
	ads := make(map[int64]model.Ad, len(resolved))
	for _, ad := range resolved {
		ads[ad.ID] = ad
	}

	now := b.now()
	p := &Profile{
		TypeWeights:     make(map[int64]float64),
		LocationWeights: make(map[int64]float64),
		SeenAdIDs:       make(map[int64]struct{}),
	}
	var priceSum float64
	var priceCount int

	for _, in := range recent {
		if in.AdID == nil {
			continue
		}
		ad, ok := ads[*in.AdID]
		if !ok {
			// Deleted since the interaction was recorded.
			continue
		}
		signal, ok := in.Type.ProfileSignal()
		if !ok {
			continue
		}

		w := signal * b.decay(daysAgo(now, in.CreatedAt))
		p.TypeWeights[ad.TypeID] += w
		if ad.LocationGroupID != nil {
			p.LocationWeights[*ad.LocationGroupID] += w
		}
		if ad.Price > 0 {
			priceSum += ad.Price
			priceCount++
		}
		p.SeenAdIDs[ad.ID] = struct{}{}
		p.Signals++
	}

	if priceCount == 0 {
		return nil, nil
	}
	p.AvgPrice = priceSum / float64(priceCount)
	p.MinPrice = p.AvgPrice * 0.5
	p.MaxPrice = p.AvgPrice * 1.8
	return p, nil
}

func (b *ProfileBuilder) decay(days int) float64 {
	return math.Exp(-decayLn2 * float64(days) / b.halfLifeDays)
}

// daysAgo is the number of whole days between t and now, never negative.
func daysAgo(now, t time.Time) int {
	d := int(now.Sub(t) / (24 * time.Hour))
	if d < 0 {
		return 0
	}
	return d
}
