// Package store implements the read side of the interaction log and the ad
// catalog. The engine only ever reads through these types.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// ─── Postgres ────────────────────────────────────────────────────────────────

// Postgres reads interactions and ads from the application database.
// It is safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Postgres store backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// adColumns selects an ad with its location group resolved through the quarter.
const adColumns = `
	SELECT a.id, a.type_id, q.city_id, COALESCE(a.price, 0)::float8, a.status,
	       a.created_at, a.is_boosted, COALESCE(a.boost_score, 0)::float8, a.boost_expires_at
	FROM ads a
	LEFT JOIN quarters q ON q.id = a.quarter_id`

// ─── Interactions ────────────────────────────────────────────────────────────

// RecentInteractions returns the newest interactions of userID whose type is
// one of types and which point at an ad.
func (s *Postgres) RecentInteractions(ctx context.Context, userID int64, types []model.InteractionType, limit int) ([]model.Interaction, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, ad_id, type, COALESCE(metadata, '{}'::jsonb), created_at
		 FROM interactions
		 WHERE user_id = $1
		   AND type = ANY($2::text[])
		   AND ad_id IS NOT NULL
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		userID, names, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recentInteractions query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Interaction, 0, limit)
	for rows.Next() {
		var (
			in  model.Interaction
			typ string
		)
		if err := rows.Scan(&in.UserID, &in.AdID, &typ, &in.Metadata, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("recentInteractions scan: %w", err)
		}
		in.Type = model.InteractionType(typ)
		out = append(out, in)
	}
	return out, rows.Err()
}

// CountByAd counts interactions of one type since a point in time, grouped by
// ad, most counted first. A limit of 0 returns every ad.
func (s *Postgres) CountByAd(ctx context.Context, typ model.InteractionType, since time.Time, limit int) ([]model.AdViews, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ad_id, COUNT(*)::int AS views
		 FROM interactions
		 WHERE type = $1
		   AND ad_id IS NOT NULL
		   AND created_at >= $2
		 GROUP BY ad_id
		 ORDER BY views DESC, ad_id ASC
		 LIMIT NULLIF($3::int, 0)`,
		string(typ), since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("countByAd query: %w", err)
	}
	defer rows.Close()

	var out []model.AdViews
	for rows.Next() {
		var v model.AdViews
		if err := rows.Scan(&v.AdID, &v.Views); err != nil {
			return nil, fmt.Errorf("countByAd scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ─── Ads ─────────────────────────────────────────────────────────────────────

// AdsByIDs resolves ads of any status. Ids that no longer exist are absent
// from the result.
func (s *Postgres) AdsByIDs(ctx context.Context, ids []int64) ([]model.Ad, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, adColumns+` WHERE a.id = ANY($1) ORDER BY a.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("adsByIDs query: %w", err)
	}
	return scanAds(rows, "adsByIDs")
}

// AvailableAds returns ads with status available matching q.
func (s *Postgres) AvailableAds(ctx context.Context, q model.AdQuery) ([]model.Ad, error) {
	sql, args := buildAvailableQuery(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("availableAds query: %w", err)
	}
	return scanAds(rows, "availableAds")
}

// buildAvailableQuery renders q into SQL with positional arguments.
func buildAvailableQuery(q model.AdQuery) (string, []any) {
	var b strings.Builder
	args := []any{model.StatusAvailable}
	b.WriteString(adColumns)
	b.WriteString(` WHERE a.status = $1`)

	if q.IDs != nil {
		args = append(args, q.IDs)
		fmt.Fprintf(&b, ` AND a.id = ANY($%d)`, len(args))
	}
	if len(q.ExcludeIDs) > 0 {
		args = append(args, q.ExcludeIDs)
		fmt.Fprintf(&b, ` AND a.id <> ALL($%d)`, len(args))
	}
	if q.BoostedOnly {
		args = append(args, q.Now)
		fmt.Fprintf(&b, ` AND a.is_boosted AND (a.boost_expires_at IS NULL OR a.boost_expires_at > $%d)`, len(args))
	}

	switch q.Order {
	case model.OrderByBoostDesc:
		b.WriteString(` ORDER BY a.boost_score DESC NULLS LAST, a.id ASC`)
	case model.OrderByNewest:
		b.WriteString(` ORDER BY a.created_at DESC, a.id DESC`)
	default:
		b.WriteString(` ORDER BY a.id ASC`)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

func scanAds(rows pgx.Rows, op string) ([]model.Ad, error) {
	defer rows.Close()

	ads := make([]model.Ad, 0)
	for rows.Next() {
		var a model.Ad
		if err := rows.Scan(
			&a.ID, &a.TypeID, &a.LocationGroupID, &a.Price, &a.Status,
			&a.CreatedAt, &a.IsBoosted, &a.BoostScore, &a.BoostExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		ads = append(ads, a)
	}
	return ads, rows.Err()
}
