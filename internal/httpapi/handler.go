// Package httpapi exposes the recommendation engine over HTTP.
//
// All recommendation routes expect an x-user-id header forwarded by the
// Gateway.
//
// Routes:
//
//	GET /recommendations  → personalized or cold start ads for the user
//	GET /health           → liveness
//	GET /metrics          → Prometheus exposition
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/recommend"
)

// UserIDHeader carries the authenticated user id set by the Gateway.
const UserIDHeader = "x-user-id"

// Recommender computes a user's recommendations.
type Recommender interface {
	Recommend(ctx context.Context, userID int64) (*recommend.Result, error)
}

// AdResolver loads full ads for recommended ids.
type AdResolver interface {
	AdsByIDs(ctx context.Context, ids []int64) ([]model.Ad, error)
}

// ─── Response types ───────────────────────────────────────────────────────────

// RecommendedAd is one entry of the data array: the ad plus why it was picked.
type RecommendedAd struct {
	model.Ad
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// RecommendationsResponse is the JSON shape returned to the Gateway.
type RecommendationsResponse struct {
	Data []RecommendedAd `json:"data"`
	Meta recommend.Meta  `json:"meta"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	engine  Recommender
	ads     AdResolver
	logger  zerolog.Logger
	service string
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(engine Recommender, ads AdResolver, logger zerolog.Logger, service, version string) *Handler {
	return &Handler{
		engine:  engine,
		ads:     ads,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		service: service,
		version: version,
	}
}

func (h *Handler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := parseUserID(r.Header.Get(UserIDHeader))
	if status != 0 {
		jsonError(w, msg, status)
		return
	}

	res, err := h.engine.Recommend(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, userID, err)
		return
	}

	resolved, err := h.ads.AdsByIDs(r.Context(), res.AdIDs())
	if err != nil {
		h.writeEngineError(w, userID, errors.Join(recommend.ErrDataUnavailable, err))
		return
	}
	byID := make(map[int64]model.Ad, len(resolved))
	for _, ad := range resolved {
		byID[ad.ID] = ad
	}

	data := make([]RecommendedAd, 0, len(res.Items))
	for _, it := range res.Items {
		// Cached results may name ads that were rented or sold since.
		ad, ok := byID[it.AdID]
		if !ok || !ad.Available() {
			continue
		}
		data = append(data, RecommendedAd{Ad: ad, Score: it.Score, Reason: it.Reason})
	}

	jsonOK(w, RecommendationsResponse{Data: data, Meta: res.Meta})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": h.service,
		"version": h.version,
	})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, userID int64, err error) {
	if errors.Is(err, recommend.ErrDataUnavailable) {
		h.logger.Warn().Err(err).Int64("user_id", userID).Msg("recommendations unavailable")
		jsonError(w, "recommendations temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	h.logger.Error().Err(err).Int64("user_id", userID).Msg("recommendations failed")
	jsonError(w, "internal error", http.StatusInternalServerError)
}

// parseUserID returns a non-zero status with a message when raw is not a
// usable user id.
func parseUserID(raw string) (int64, int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, http.StatusUnauthorized, "missing x-user-id header"
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, http.StatusBadRequest, "invalid x-user-id header"
	}
	return id, 0, ""
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
