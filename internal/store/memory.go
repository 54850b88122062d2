package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// Memory is an in-process store with the same query semantics as Postgres.
// It backs the engine in tests and in dry runs.
type Memory struct {
	mu           sync.RWMutex
	ads          map[int64]model.Ad
	interactions []model.Interaction
	err          error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{ads: make(map[int64]model.Ad)}
}

// PutAds inserts or replaces ads.
func (m *Memory) PutAds(ads ...model.Ad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range ads {
		m.ads[a.ID] = a
	}
}

// DeleteAd removes an ad, leaving interactions that point at it dangling.
func (m *Memory) DeleteAd(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ads, id)
}

// Record appends interactions to the log.
func (m *Memory) Record(in ...model.Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in...)
}

// FailWith makes every subsequent read return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.err
}

// RecentInteractions mirrors Postgres.RecentInteractions. Among equal
// timestamps the later recorded interaction comes first.
func (m *Memory) RecentInteractions(ctx context.Context, userID int64, types []model.InteractionType, limit int) ([]model.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	var out []model.Interaction
	for i := len(m.interactions) - 1; i >= 0; i-- {
		in := m.interactions[i]
		if in.UserID != userID || in.AdID == nil || !slices.Contains(types, in.Type) {
			continue
		}
		out = append(out, in)
	}
	slices.SortStableFunc(out, func(a, b model.Interaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByAd mirrors Postgres.CountByAd.
func (m *Memory) CountByAd(ctx context.Context, typ model.InteractionType, since time.Time, limit int) ([]model.AdViews, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	counts := make(map[int64]int)
	for _, in := range m.interactions {
		if in.Type != typ || in.AdID == nil || in.CreatedAt.Before(since) {
			continue
		}
		counts[*in.AdID]++
	}

	out := make([]model.AdViews, 0, len(counts))
	for id, n := range counts {
		out = append(out, model.AdViews{AdID: id, Views: n})
	}
	slices.SortFunc(out, func(a, b model.AdViews) int {
		if c := cmp.Compare(b.Views, a.Views); c != 0 {
			return c
		}
		return cmp.Compare(a.AdID, b.AdID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AdsByIDs mirrors Postgres.AdsByIDs.
func (m *Memory) AdsByIDs(ctx context.Context, ids []int64) ([]model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(ids))
	var out []model.Ad
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if a, ok := m.ads[id]; ok {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Ad) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// AvailableAds mirrors Postgres.AvailableAds.
func (m *Memory) AvailableAds(ctx context.Context, q model.AdQuery) ([]model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	var include map[int64]struct{}
	if q.IDs != nil {
		include = toSet(q.IDs)
	}
	exclude := toSet(q.ExcludeIDs)

	out := make([]model.Ad, 0)
	for _, a := range m.ads {
		if !a.Available() {
			continue
		}
		if include != nil {
			if _, ok := include[a.ID]; !ok {
				continue
			}
		}
		if _, ok := exclude[a.ID]; ok {
			continue
		}
		if q.BoostedOnly && !a.BoostActive(q.Now) {
			continue
		}
		out = append(out, a)
	}

	slices.SortFunc(out, adOrdering(q.Order))
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func adOrdering(order model.AdOrder) func(a, b model.Ad) int {
	switch order {
	case model.OrderByBoostDesc:
		return func(a, b model.Ad) int {
			if c := cmp.Compare(b.BoostScore, a.BoostScore); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	case model.OrderByNewest:
		return func(a, b model.Ad) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		}
	default:
		return func(a, b model.Ad) int { return cmp.Compare(a.ID, b.ID) }
	}
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
