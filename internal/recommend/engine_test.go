package recommend_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/cache"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/metrics"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/recommend"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/store"
)

// brokenCache fails every call, as an unreachable Redis would.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

// gatedStore blocks RecentInteractions until release is closed and counts
// the calls that got through the gate.
type gatedStore struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedStore(st *store.Memory) *gatedStore {
	return &gatedStore{Memory: st, entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedStore) RecentInteractions(ctx context.Context, userID int64, types []model.InteractionType, limit int) ([]model.Interaction, error) {
	g.calls.Add(1)
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Memory.RecentInteractions(ctx, userID, types, limit)
}

// personalizedCatalog holds ads 1..30. User 1 interacted with ads 1..3.
// Ads 25 and 26 are not available.
func personalizedCatalog() *store.Memory {
	st := store.NewMemory()
	st.PutAds(
		newAd(1, 1, 10, 100, 20*day),
		newAd(2, 1, 10, 120, 20*day),
		newAd(3, 2, 20, 90, 20*day),
	)
	for id := int64(4); id <= 30; id++ {
		a := newAd(id, 1+id%3, 10+10*(id%2), float64(40*id), time.Duration(id)*time.Hour)
		switch id {
		case 25:
			a.Status = "rented"
		case 26:
			a.Status = "sold"
		case 9, 12:
			a = boosted(a, float64(id))
		}
		st.PutAds(a)
	}
	st.Record(
		event(1, 1, model.InteractionUnlock, day),
		event(1, 2, model.InteractionFavorite, 2*day),
		event(1, 3, model.InteractionView, 3*day),
		event(2, 7, model.InteractionView, time.Hour),
		event(3, 7, model.InteractionView, time.Hour),
	)
	return st
}

func TestRecommend_Personalized(t *testing.T) {
	st := personalizedCatalog()
	res, err := newEngine(t, st, nil).Recommend(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, recommend.SourcePersonalized, res.Meta.Source)
	assert.Equal(t, recommend.AlgorithmVersion, res.Meta.Algorithm)
	assert.NotEmpty(t, res.Meta.RequestID)
	assert.Equal(t, now, res.Meta.GeneratedAt)
	assert.Equal(t, 3, res.Meta.ProfileSignals)
	assert.Equal(t, 25, res.Meta.CandidatesScored)
	assert.Equal(t, 12, res.Meta.MainCount)
	assert.Equal(t, 3, res.Meta.DiversityCount)
	require.Len(t, res.Items, 15)

	seen := map[int64]bool{}
	for i, it := range res.Items {
		assert.NotContains(t, []int64{1, 2, 3, 25, 26}, it.AdID)
		assert.False(t, seen[it.AdID], "duplicate ad %d", it.AdID)
		seen[it.AdID] = true

		if i < 12 {
			assert.Equal(t, recommend.ReasonProfileMatch, it.Reason)
			if i > 0 {
				assert.GreaterOrEqual(t, res.Items[i-1].Score, it.Score)
			}
		} else {
			assert.Equal(t, recommend.ReasonDiversity, it.Reason)
		}
	}
}

func TestRecommend_NewUserGetsColdStart(t *testing.T) {
	st := personalizedCatalog()
	res, err := newEngine(t, st, nil).Recommend(context.Background(), 99)
	require.NoError(t, err)

	assert.Equal(t, recommend.SourceColdStart, res.Meta.Source)
	assert.Equal(t, recommend.AlgorithmVersion, res.Meta.Algorithm)
	require.Len(t, res.Items, 15)
	assert.Equal(t, int64(7), res.Items[0].AdID)
	assert.Equal(t, recommend.ReasonTrending, res.Items[0].Reason)
}

func TestRecommend_DeletedHistoryFallsBackToColdStart(t *testing.T) {
	st := personalizedCatalog()
	st.Record(event(5, 30, model.InteractionUnlock, time.Hour))
	st.DeleteAd(30)

	res, err := newEngine(t, st, nil).Recommend(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, recommend.SourceColdStart, res.Meta.Source)
	assert.NotContains(t, res.AdIDs(), int64(30))
}

func TestRecommend_NoCandidatesIsEmptyNotError(t *testing.T) {
	st := store.NewMemory()
	gone := newAd(1, 1, 10, 100, day)
	gone.Status = "sold"
	st.PutAds(gone)
	st.Record(event(1, 1, model.InteractionView, time.Hour))

	res, err := newEngine(t, st, nil).Recommend(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, recommend.SourcePersonalized, res.Meta.Source)
	assert.Empty(t, res.Items)
}

func TestRecommend_CachedResultIsReturnedVerbatim(t *testing.T) {
	ctx := context.Background()
	st := personalizedCatalog()
	c := cache.NewMemory()
	e := newEngine(t, st, c)

	first, err := e.Recommend(ctx, 1)
	require.NoError(t, err)

	payload, err := c.Get(ctx, "recommendations:weighted_hybrid_v1:user:1")
	require.NoError(t, err)
	var stored recommend.Result
	require.NoError(t, json.Unmarshal(payload, &stored))
	assert.Equal(t, first.Meta.RequestID, stored.Meta.RequestID)

	// Changes to the underlying data are invisible until the entry expires.
	st.PutAds(newAd(31, 1, 10, 100, 0))
	second, err := e.Recommend(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecommend_RecordsCacheOutcomes(t *testing.T) {
	hits := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.CacheHit))
	misses := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.CacheMiss))
	failures := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.CacheError))

	ctx := context.Background()
	e := newEngine(t, personalizedCatalog(), cache.NewMemory())
	_, err := e.Recommend(ctx, 1)
	require.NoError(t, err)
	_, err = e.Recommend(ctx, 1)
	require.NoError(t, err)
	_, err = newEngine(t, personalizedCatalog(), brokenCache{}).Recommend(ctx, 1)
	require.NoError(t, err)

	assert.InDelta(t, misses+1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.CacheMiss)), 1e-9)
	assert.InDelta(t, hits+1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.CacheHit)), 1e-9)
	assert.InDelta(t, failures+1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.CacheError)), 1e-9)
}

func TestRecommend_CacheExpires(t *testing.T) {
	ctx := context.Background()
	st := personalizedCatalog()
	c := &clock{t: now}
	mem := cache.NewMemoryWithClock(c.Now)
	e := newEngine(t, st, mem)

	first, err := e.Recommend(ctx, 1)
	require.NoError(t, err)

	c.Advance(11 * time.Minute)
	second, err := e.Recommend(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.Meta.RequestID, second.Meta.RequestID)
}

func TestRecommend_CacheOutageStillServes(t *testing.T) {
	st := personalizedCatalog()
	res, err := newEngine(t, st, brokenCache{}).Recommend(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, res.Items, 15)
}

func TestRecommend_StoreFailureIsDataUnavailable(t *testing.T) {
	st := personalizedCatalog()
	boom := errors.New("too many connections")
	st.FailWith(boom)

	for _, userID := range []int64{1, 99} {
		_, err := newEngine(t, st, cache.NewMemory()).Recommend(context.Background(), userID)
		require.ErrorIs(t, err, recommend.ErrDataUnavailable)
		require.ErrorIs(t, err, boom)
	}
}

func TestRecommend_FailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	st := personalizedCatalog()
	c := cache.NewMemory()
	e := newEngine(t, st, c)

	st.FailWith(errors.New("down"))
	_, err := e.Recommend(ctx, 1)
	require.Error(t, err)
	assert.Zero(t, c.Len())

	st.FailWith(nil)
	res, err := e.Recommend(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Items)
}

func TestRecommend_CanceledContext(t *testing.T) {
	st := personalizedCatalog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, st, nil).Recommend(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecommend_ConcurrentCallers(t *testing.T) {
	st := personalizedCatalog()
	e := newEngine(t, st, cache.NewMemory())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			res, err := e.Recommend(context.Background(), userID)
			if err == nil && len(res.Items) == 0 {
				err = errors.New("empty result")
			}
			errs <- err
		}(int64(1 + i%2*98))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRecommend_SharedComputationSurvivesCanceledCaller(t *testing.T) {
	gated := newGatedStore(personalizedCatalog())
	e := recommend.NewEngine(gated, gated.Memory, nil, testSettings(), zerolog.New(io.Discard), recommend.WithClock(fixedClock))

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Recommend(first, 1)
		firstErr <- err
	}()
	<-gated.entered

	type outcome struct {
		res *recommend.Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := e.Recommend(context.Background(), 1)
		second <- outcome{res, err}
	}()
	// Give the second caller time to join the in-flight computation.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(gated.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Len(t, got.res.Items, 15)
	assert.Equal(t, int32(1), gated.calls.Load())
}

func TestRecommend_ComputeTimeoutIsDataUnavailable(t *testing.T) {
	gated := newGatedStore(personalizedCatalog())
	s := testSettings()
	s.ComputeTimeout = 20 * time.Millisecond
	e := recommend.NewEngine(gated, gated.Memory, nil, s, zerolog.New(io.Discard), recommend.WithClock(fixedClock))

	_, err := e.Recommend(context.Background(), 1)
	require.ErrorIs(t, err, recommend.ErrDataUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "recommendations:weighted_hybrid_v1:user:42", recommend.CacheKey(42))
}

func TestSettings_Split(t *testing.T) {
	s := recommend.DefaultSettings()
	assert.Equal(t, 12, s.MainLimit())
	assert.Equal(t, 3, s.DiversityLimit())

	s.ResultLimit, s.DiversityRatio = 10, 0.25
	assert.Equal(t, 8, s.MainLimit())
	assert.Equal(t, 2, s.DiversityLimit())
}
