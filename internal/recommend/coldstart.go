package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// ColdStart composes a result for users without a usable profile: trending
// ads first, then boosted ads, then the newest ads.
type ColdStart struct {
	interactions InteractionStore
	catalog      AdCatalog
	limit        int
	window       time.Duration
	now          func() time.Time
}

// NewColdStart returns a cold start composer.
func NewColdStart(interactions InteractionStore, catalog AdCatalog, settings Settings, now func() time.Time) *ColdStart {
	if now == nil {
		now = time.Now
	}
	return &ColdStart{
		interactions: interactions,
		catalog:      catalog,
		limit:        settings.ResultLimit,
		window:       settings.TrendingWindow,
		now:          now,
	}
}

// Compose returns the cold start items in stage order. A stage that yields
// fewer ads than its quota leaves its slots to the later stages only; latest
// fills whatever remains of the limit. Items carry no score.
func (c *ColdStart) Compose(ctx context.Context) (*Result, error) {
	now := c.now()
	res := &Result{Items: make([]Item, 0, c.limit), Meta: Meta{Source: SourceColdStart}}
	chosen := make([]int64, 0, c.limit)
	add := func(ads []model.Ad, reason string) {
		for _, ad := range ads {
			res.Items = append(res.Items, Item{AdID: ad.ID, Reason: reason})
			chosen = append(chosen, ad.ID)
		}
	}

	trending, err := c.trending(ctx, now, ceilShare(c.limit, trendingShare))
	if err != nil {
		return nil, err
	}
	add(trending, ReasonTrending)
	res.Meta.TrendingCount = len(trending)

	boosted, err := c.catalog.AvailableAds(ctx, model.AdQuery{
		ExcludeIDs:  chosen,
		BoostedOnly: true,
		Now:         now,
		Order:       model.OrderByBoostDesc,
		Limit:       ceilShare(c.limit, boostedShare),
	})
	if err != nil {
		return nil, fmt.Errorf("boosted ads: %w", err)
	}
	add(boosted, ReasonBoosted)
	res.Meta.BoostedCount = len(boosted)

	if remaining := c.limit - len(chosen); remaining > 0 {
		latest, err := c.catalog.AvailableAds(ctx, model.AdQuery{
			ExcludeIDs: chosen,
			Order:      model.OrderByNewest,
			Limit:      remaining,
		})
		if err != nil {
			return nil, fmt.Errorf("latest ads: %w", err)
		}
		add(latest, ReasonLatest)
		res.Meta.LatestCount = len(latest)
	}
	return res, nil
}

// trending returns the available ads among the most viewed of the window,
// most viewed first.
func (c *ColdStart) trending(ctx context.Context, now time.Time, limit int) ([]model.Ad, error) {
	if limit <= 0 {
		return nil, nil
	}
	counts, err := c.interactions.CountByAd(ctx, model.InteractionView, now.Add(-c.window), limit)
	if err != nil {
		return nil, fmt.Errorf("trending views: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(counts))
	for i, v := range counts {
		ids[i] = v.AdID
	}
	ads, err := c.catalog.AvailableAds(ctx, model.AdQuery{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("trending ads: %w", err)
	}
	byID := make(map[int64]model.Ad, len(ads))
	for _, ad := range ads {
		byID[ad.ID] = ad
	}

	out := make([]model.Ad, 0, len(ids))
	for _, id := range ids {
		if ad, ok := byID[id]; ok {
			out = append(out, ad)
		}
	}
	return out, nil
}
