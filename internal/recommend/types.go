package recommend

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// AlgorithmVersion identifies the scoring scheme. It is part of every cache
// key, so changing it invalidates cached results.
const AlgorithmVersion = "weighted_hybrid_v1"

// Result sources.
const (
	SourcePersonalized = "personalized"
	SourceColdStart    = "cold_start"
)

// Item reasons.
const (
	ReasonProfileMatch = "profile_match"
	ReasonDiversity    = "diversity"
	ReasonTrending     = "trending"
	ReasonBoosted      = "boosted"
	ReasonLatest       = "latest"
)

// Cold start composition shares of the result limit.
const (
	trendingShare = 0.4
	boostedShare  = 0.3
)

// ErrDataUnavailable wraps every failure of the interaction store or the ad
// catalog. It is never returned for an empty result.
var ErrDataUnavailable = errors.New("recommendation data unavailable")

// ─── Collaborators ──────────────────────────────────────────────────────────

// InteractionStore is the read side of the interaction log.
type InteractionStore interface {
	// RecentInteractions returns at most limit interactions of userID with one
	// of types and a non-nil ad, newest first.
	RecentInteractions(ctx context.Context, userID int64, types []model.InteractionType, limit int) ([]model.Interaction, error)
	// CountByAd counts interactions of typ since the given time per ad, most
	// counted first. limit 0 means all ads.
	CountByAd(ctx context.Context, typ model.InteractionType, since time.Time, limit int) ([]model.AdViews, error)
}

// AdCatalog is the read side of the listings.
type AdCatalog interface {
	// AdsByIDs resolves ads of any status; unknown ids are omitted.
	AdsByIDs(ctx context.Context, ids []int64) ([]model.Ad, error)
	// AvailableAds lists ads with status available matching q.
	AvailableAds(ctx context.Context, q model.AdQuery) ([]model.Ad, error)
}

// Cache stores serialized results. Get returns cache.ErrMiss when the key is
// absent; any other error is treated as the cache being unavailable.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ─── Settings ───────────────────────────────────────────────────────────────

// Settings are the tunables of the engine.
type Settings struct {
	// ResultLimit bounds the number of ads returned.
	ResultLimit int
	// DiversityRatio is the share of ResultLimit reserved for diversity ads.
	DiversityRatio float64
	// ProfileDepth is how many recent interactions feed a profile.
	ProfileDepth int
	// HalfLifeDays controls the exponential decay of interactions.
	HalfLifeDays float64
	// PopularityWindow is the trailing window of the popularity index.
	PopularityWindow time.Duration
	// TrendingWindow is the trailing window of cold start trending.
	TrendingWindow time.Duration
	// CacheTTL is how long a computed result is served from cache.
	CacheTTL time.Duration
	// PopularityMaxAge is how long a refreshed popularity snapshot is trusted.
	// Zero disables snapshots.
	PopularityMaxAge time.Duration
	// Seed seeds the diversity shuffle. Zero seeds from the clock.
	Seed int64
	// ComputeTimeout bounds one shared computation, which outlives the
	// request that started it. Zero means no bound.
	ComputeTimeout time.Duration
}

// DefaultSettings returns the production tunables.
func DefaultSettings() Settings {
	return Settings{
		ResultLimit:      15,
		DiversityRatio:   0.2,
		ProfileDepth:     30,
		HalfLifeDays:     14,
		PopularityWindow: 30 * 24 * time.Hour,
		TrendingWindow:   7 * 24 * time.Hour,
		CacheTTL:         10 * time.Minute,
		ComputeTimeout:   10 * time.Second,
	}
}

// MainLimit is the number of scored ads kept before diversity is appended.
func (s Settings) MainLimit() int {
	return ceilShare(s.ResultLimit, 1-s.DiversityRatio)
}

// DiversityLimit is the number of diversity slots.
func (s Settings) DiversityLimit() int {
	return max(0, s.ResultLimit-s.MainLimit())
}

// ceilShare returns ceil(n*share), tolerating float error around integers.
func ceilShare(n int, share float64) int {
	return int(math.Ceil(float64(n)*share - 1e-9))
}

// ─── Profile ────────────────────────────────────────────────────────────────

// Profile is the decayed preference summary of one user. It is derived per
// request and never stored.
type Profile struct {
	TypeWeights     map[int64]float64
	LocationWeights map[int64]float64
	AvgPrice        float64
	MinPrice        float64
	MaxPrice        float64
	SeenAdIDs       map[int64]struct{}
	// Signals counts the interactions that contributed.
	Signals int
}

// Seen reports whether the user already interacted with the ad.
func (p *Profile) Seen(adID int64) bool {
	_, ok := p.SeenAdIDs[adID]
	return ok
}

// SeenIDs returns the seen ad ids in ascending order.
func (p *Profile) SeenIDs() []int64 {
	ids := make([]int64, 0, len(p.SeenAdIDs))
	for id := range p.SeenAdIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// PrefersType reports whether the type carries any weight in the profile.
func (p *Profile) PrefersType(typeID int64) bool {
	_, ok := p.TypeWeights[typeID]
	return ok
}

// InBudget reports whether price lies within [MinPrice, MaxPrice].
func (p *Profile) InBudget(price float64) bool {
	return price >= p.MinPrice && price <= p.MaxPrice
}

// ─── Output ─────────────────────────────────────────────────────────────────

// Breakdown holds the weighted sub-scores of one candidate.
type Breakdown struct {
	Type       float64 `json:"type"`
	Location   float64 `json:"location"`
	Budget     float64 `json:"budget"`
	Freshness  float64 `json:"freshness"`
	Popularity float64 `json:"popularity"`
	Boost      float64 `json:"boost"`
}

// ScoredCandidate is a candidate ad with its rounded score. Scores are only
// comparable within one scoring call.
type ScoredCandidate struct {
	Ad        model.Ad
	Score     float64
	Breakdown Breakdown
}

// Item is one entry of a result.
type Item struct {
	AdID   int64   `json:"ad_id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Meta describes how a result was produced.
type Meta struct {
	Source      string    `json:"source"`
	Algorithm   string    `json:"algorithm"`
	RequestID   string    `json:"request_id"`
	GeneratedAt time.Time `json:"generated_at"`

	ProfileSignals   int `json:"profile_signals,omitempty"`
	CandidatesScored int `json:"candidates_scored,omitempty"`
	MainCount        int `json:"main_count,omitempty"`
	DiversityCount   int `json:"diversity_count,omitempty"`

	TrendingCount int `json:"trending_count,omitempty"`
	BoostedCount  int `json:"boosted_count,omitempty"`
	LatestCount   int `json:"latest_count,omitempty"`
}

// Result is the ordered recommendation list for one user.
type Result struct {
	Items []Item `json:"items"`
	Meta  Meta   `json:"meta"`
}

// AdIDs returns the recommended ad ids in order.
func (r *Result) AdIDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, it := range r.Items {
		ids = append(ids, it.AdID)
	}
	return ids
}
