package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/store"
)

var t0 = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestMemory_RecentInteractions_FiltersAndOrders(t *testing.T) {
	m := store.NewMemory()
	m.Record(
		model.Interaction{UserID: 1, AdID: ptr[int64](10), Type: model.InteractionView, CreatedAt: t0},
		model.Interaction{UserID: 1, AdID: ptr[int64](11), Type: model.InteractionUnlock, CreatedAt: t0.Add(2 * time.Hour)},
		model.Interaction{UserID: 1, AdID: nil, Type: model.InteractionView, CreatedAt: t0.Add(3 * time.Hour)},
		model.Interaction{UserID: 1, AdID: ptr[int64](12), Type: model.InteractionSearch, CreatedAt: t0.Add(4 * time.Hour)},
		model.Interaction{UserID: 2, AdID: ptr[int64](13), Type: model.InteractionView, CreatedAt: t0.Add(5 * time.Hour)},
		model.Interaction{UserID: 1, AdID: ptr[int64](14), Type: model.InteractionFavorite, CreatedAt: t0.Add(time.Hour)},
	)

	got, err := m.RecentInteractions(context.Background(), 1, model.ProfileTypes(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(11), *got[0].AdID)
	require.Equal(t, int64(14), *got[1].AdID)
}

func TestMemory_CountByAd_WindowAndOrder(t *testing.T) {
	m := store.NewMemory()
	view := func(ad int64, at time.Time) model.Interaction {
		return model.Interaction{UserID: 9, AdID: ptr(ad), Type: model.InteractionView, CreatedAt: at}
	}
	m.Record(
		view(3, t0), view(3, t0), view(2, t0), view(2, t0), view(1, t0),
		view(1, t0.Add(-48*time.Hour)), // outside window
		model.Interaction{UserID: 9, AdID: ptr[int64](1), Type: model.InteractionFavorite, CreatedAt: t0},
	)

	got, err := m.CountByAd(context.Background(), model.InteractionView, t0.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Equal(t, []model.AdViews{{AdID: 2, Views: 2}, {AdID: 3, Views: 2}, {AdID: 1, Views: 1}}, got)

	top, err := m.CountByAd(context.Background(), model.InteractionView, t0.Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Equal(t, []model.AdViews{{AdID: 2, Views: 2}}, top)
}

func TestMemory_AvailableAds_Query(t *testing.T) {
	m := store.NewMemory()
	expired := t0.Add(-time.Minute)
	m.PutAds(
		model.Ad{ID: 1, Status: model.StatusAvailable, CreatedAt: t0, IsBoosted: true, BoostScore: 5},
		model.Ad{ID: 2, Status: model.StatusAvailable, CreatedAt: t0.Add(time.Hour), IsBoosted: true, BoostScore: 9},
		model.Ad{ID: 3, Status: "sold", CreatedAt: t0.Add(2 * time.Hour), IsBoosted: true, BoostScore: 20},
		model.Ad{ID: 4, Status: model.StatusAvailable, CreatedAt: t0.Add(3 * time.Hour), IsBoosted: true, BoostScore: 30, BoostExpiresAt: &expired},
		model.Ad{ID: 5, Status: model.StatusAvailable, CreatedAt: t0.Add(3 * time.Hour)},
	)
	ctx := context.Background()

	all, err := m.AvailableAds(ctx, model.AdQuery{})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 4, 5}, ids(all))

	boosted, err := m.AvailableAds(ctx, model.AdQuery{BoostedOnly: true, Now: t0, Order: model.OrderByBoostDesc})
	require.NoError(t, err)
	require.Equal(t, []int64{2, 1}, ids(boosted))

	newest, err := m.AvailableAds(ctx, model.AdQuery{ExcludeIDs: []int64{1}, Order: model.OrderByNewest, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []int64{5, 4}, ids(newest))

	only, err := m.AvailableAds(ctx, model.AdQuery{IDs: []int64{3, 2}})
	require.NoError(t, err)
	require.Equal(t, []int64{2}, ids(only))

	none, err := m.AvailableAds(ctx, model.AdQuery{IDs: []int64{}})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemory_AdsByIDs_SkipsMissing(t *testing.T) {
	m := store.NewMemory()
	m.PutAds(model.Ad{ID: 1, Status: "sold"}, model.Ad{ID: 2, Status: model.StatusAvailable})
	m.DeleteAd(2)

	got, err := m.AdsByIDs(context.Background(), []int64{2, 1, 1})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(got))
}

func TestMemory_FailWith(t *testing.T) {
	m := store.NewMemory()
	boom := errors.New("connection refused")
	m.FailWith(boom)

	_, err := m.AvailableAds(context.Background(), model.AdQuery{})
	require.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.AvailableAds(context.Background(), model.AdQuery{})
	require.NoError(t, err)
}

func ids(ads []model.Ad) []int64 {
	out := make([]int64, 0, len(ads))
	for _, a := range ads {
		out = append(out, a.ID)
	}
	return out
}
