package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// PopularityIndex maps ad ids to their view count over a trailing window.
//
// Views computes the map live unless a snapshot taken by Refresh is younger
// than the configured max age. Refresh is meant to run on a schedule.
type PopularityIndex struct {
	interactions InteractionStore
	window       time.Duration
	maxAge       time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	snapshot map[int64]int
	takenAt  time.Time
}

// NewPopularityIndex returns an index over the given store. maxAge 0 disables
// snapshots.
func NewPopularityIndex(interactions InteractionStore, window, maxAge time.Duration, now func() time.Time) *PopularityIndex {
	if now == nil {
		now = time.Now
	}
	return &PopularityIndex{
		interactions: interactions,
		window:       window,
		maxAge:       maxAge,
		now:          now,
	}
}

// Views returns the view count per ad. Ads without views are absent. The
// returned map must not be modified.
func (p *PopularityIndex) Views(ctx context.Context) (map[int64]int, error) {
	if snap, ok := p.fresh(); ok {
		return snap, nil
	}
	return p.compute(ctx)
}

// Refresh recomputes the snapshot and returns the number of ads in it. On
// error the previous snapshot is kept.
func (p *PopularityIndex) Refresh(ctx context.Context) (int, error) {
	views, err := p.compute(ctx)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.snapshot = views
	p.takenAt = p.now()
	p.mu.Unlock()
	return len(views), nil
}

func (p *PopularityIndex) fresh() (map[int64]int, bool) {
	if p.maxAge <= 0 {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil || p.now().Sub(p.takenAt) > p.maxAge {
		return nil, false
	}
	return p.snapshot, true
}

func (p *PopularityIndex) compute(ctx context.Context) (map[int64]int, error) {
	counts, err := p.interactions.CountByAd(ctx, model.InteractionView, p.now().Add(-p.window), 0)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	views := make(map[int64]int, len(counts))
	for _, c := range counts {
		views[c.AdID] = c.Views
	}
	return views, nil
}
