package model

import "time"

// StatusAvailable is the only ad status eligible for recommendation.
const StatusAvailable = "available"

// Ad is a listing as seen by the engine. Relations are resolved by the
// catalog adapter before the ad reaches the engine: LocationGroupID is the
// city of the ad's quarter, nil when the ad has no quarter.
type Ad struct {
	ID              int64      `json:"id"`
	TypeID          int64      `json:"type_id"`
	LocationGroupID *int64     `json:"location_group_id"`
	Price           float64    `json:"price"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	IsBoosted       bool       `json:"is_boosted"`
	BoostScore      float64    `json:"boost_score"`
	BoostExpiresAt  *time.Time `json:"boost_expires_at"`
}

// Available reports whether the ad may be scored or returned.
func (a Ad) Available() bool { return a.Status == StatusAvailable }

// BoostActive reports whether the boost flag is set and not yet expired at now.
// A boost without an expiry never lapses.
func (a Ad) BoostActive(now time.Time) bool {
	if !a.IsBoosted {
		return false
	}
	return a.BoostExpiresAt == nil || a.BoostExpiresAt.After(now)
}

// AdOrder selects the ordering of an AdQuery.
type AdOrder int

const (
	// OrderByID sorts by id ascending.
	OrderByID AdOrder = iota
	// OrderByBoostDesc sorts by boost score descending, id ascending.
	OrderByBoostDesc
	// OrderByNewest sorts by creation time descending, id descending.
	OrderByNewest
)

// AdQuery filters available ads. The status filter is implicit.
type AdQuery struct {
	// IDs restricts the result to these ids when non-nil.
	IDs []int64
	// ExcludeIDs drops these ids.
	ExcludeIDs []int64
	// BoostedOnly keeps ads whose boost is active at Now.
	BoostedOnly bool
	Now         time.Time
	Order       AdOrder
	// Limit caps the result; 0 means no limit.
	Limit int
}
