// Package recommend computes per-user ad recommendations.
//
// A user with usable history gets the personalized path: a decayed profile
// of recent interactions, hybrid scoring of every unseen available ad, and a
// small random diversity tail. Everyone else gets the cold start path built
// from trending, boosted and newest ads. Results are cached per user.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/cache"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/metrics"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// CacheKey is the result cache key of a user.
func CacheKey(userID int64) string {
	return fmt.Sprintf("recommendations:%s:user:%d", AlgorithmVersion, userID)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the recommendation orchestrator. It is safe for concurrent use.
type Engine struct {
	catalog  AdCatalog
	cache    Cache
	settings Settings
	logger   zerolog.Logger
	now      func() time.Time

	profiles   *ProfileBuilder
	popularity *PopularityIndex
	diversity  *DiversitySelector
	coldStart  *ColdStart

	group singleflight.Group
}

// NewEngine wires an engine over the given stores. c may be nil, in which
// case every request is computed.
func NewEngine(interactions InteractionStore, catalog AdCatalog, c Cache, settings Settings, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog,
		cache:    c,
		settings: settings,
		logger:   logger.With().Str("component", "recommend").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e.profiles = NewProfileBuilder(interactions, catalog, settings, e.now)
	e.popularity = NewPopularityIndex(interactions, settings.PopularityWindow, settings.PopularityMaxAge, e.now)
	e.diversity = NewDiversitySelector(catalog, seed)
	e.coldStart = NewColdStart(interactions, catalog, settings, e.now)
	return e
}

// Popularity exposes the engine's popularity index so it can be refreshed on
// a schedule.
func (e *Engine) Popularity() *PopularityIndex { return e.popularity }

// Recommend returns the recommendations of userID. A cached result is
// returned verbatim. Store failures are wrapped in ErrDataUnavailable;
// cache failures only cost a recomputation.
//
// Concurrent misses for the same user share one computation. It runs
// detached from any single caller, so a caller that gives up only returns
// its own ctx.Err() and the others still get the result.
func (e *Engine) Recommend(ctx context.Context, userID int64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := CacheKey(userID)
	log := e.logger.With().Int64("user_id", userID).Logger()

	if res, ok := e.cached(ctx, key, log); ok {
		return res, nil
	}

	ch := e.group.DoChan(key, func() (any, error) {
		cctx, cancel := e.detach(ctx)
		defer cancel()
		return e.compute(cctx, userID, key, log)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return decode(r.Val.([]byte))
	}
}

// detach keeps the values of ctx but not its cancellation, bounded by
// ComputeTimeout.
func (e *Engine) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if e.settings.ComputeTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, e.settings.ComputeTimeout)
}

func (e *Engine) cached(ctx context.Context, key string, log zerolog.Logger) (*Result, bool) {
	if e.cache == nil {
		return nil, false
	}
	payload, err := e.cache.Get(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, false
	default:
		metrics.CacheLookups.WithLabelValues(metrics.CacheError).Inc()
		log.Warn().Err(err).Msg("result cache read failed, recomputing")
		return nil, false
	}

	res, err := decode(payload)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(metrics.CacheError).Inc()
		log.Warn().Err(err).Msg("discarding undecodable cached result")
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
	return res, true
}

// compute runs the pipeline and returns the serialized result, which is
// what gets cached and what every coalesced caller decodes.
func (e *Engine) compute(ctx context.Context, userID int64, key string, log zerolog.Logger) ([]byte, error) {
	start := time.Now()

	profile, err := e.profiles.Build(ctx, userID)
	if err != nil {
		return nil, e.fail(log, "profile", err)
	}

	var res *Result
	if profile == nil {
		res, err = e.coldStart.Compose(ctx)
		if err != nil {
			return nil, e.fail(log, "cold_start", err)
		}
	} else {
		res, err = e.personalized(ctx, profile)
		if err != nil {
			return nil, e.fail(log, "personalized", err)
		}
	}

	res.Meta.Algorithm = AlgorithmVersion
	res.Meta.RequestID = uuid.NewString()
	res.Meta.GeneratedAt = e.now().UTC()

	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, key, payload, e.settings.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("result cache write failed")
		}
	}

	elapsed := time.Since(start)
	metrics.Recommendations.WithLabelValues(res.Meta.Source).Inc()
	metrics.Duration.WithLabelValues(res.Meta.Source).Observe(elapsed.Seconds())
	log.Debug().
		Str("request_id", res.Meta.RequestID).
		Str("source", res.Meta.Source).
		Int("items", len(res.Items)).
		Dur("elapsed", elapsed).
		Msg("recommendations computed")
	return payload, nil
}

func (e *Engine) personalized(ctx context.Context, profile *Profile) (*Result, error) {
	var (
		candidates []model.Ad
		views      map[int64]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = e.catalog.AvailableAds(gctx, model.AdQuery{ExcludeIDs: profile.SeenIDs()})
		if err != nil {
			return fmt.Errorf("candidates: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		views, err = e.popularity.Views(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scored := Score(profile, candidates, views, e.now())
	main := scored[:min(len(scored), e.settings.MainLimit())]

	limit := e.settings.ResultLimit
	items := make([]Item, 0, limit)
	selected := make([]int64, 0, len(main))
	for _, c := range main {
		items = append(items, Item{AdID: c.Ad.ID, Score: c.Score, Reason: ReasonProfileMatch})
		selected = append(selected, c.Ad.ID)
	}

	extra, err := e.diversity.Select(ctx, profile, selected, e.settings.DiversityLimit())
	if err != nil {
		return nil, err
	}
	for _, ad := range extra {
		items = append(items, Item{AdID: ad.ID, Reason: ReasonDiversity})
	}
	if len(items) > limit {
		items = items[:limit]
	}

	return &Result{
		Items: items,
		Meta: Meta{
			Source:           SourcePersonalized,
			ProfileSignals:   profile.Signals,
			CandidatesScored: len(candidates),
			MainCount:        len(main),
			DiversityCount:   len(extra),
		},
	}, nil
}

func (e *Engine) fail(log zerolog.Logger, stage string, err error) error {
	metrics.Errors.WithLabelValues(stage).Inc()
	log.Error().Err(err).Str("stage", stage).Msg("recommendation failed")
	return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, stage, err)
}

func decode(payload []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}
