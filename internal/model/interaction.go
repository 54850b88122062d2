// Package model defines the data shared by the stores and the recommendation
// engine.
//
// Interaction types and the weight each one carries in a user profile:
//
//	unlock ──► 3.0
//	favorite ► 2.0
//	view ────► 1.0
//	search, unfavorite ──► not a profile signal
package model

import (
	"fmt"
	"time"
)

// InteractionType values mirror the interactions.type column.
type InteractionType string

const (
	InteractionView       InteractionType = "view"
	InteractionFavorite   InteractionType = "favorite"
	InteractionUnfavorite InteractionType = "unfavorite"
	InteractionSearch     InteractionType = "search"
	InteractionUnlock     InteractionType = "unlock"
)

// profileSignals lists every type that feeds the profile and its multiplier.
var profileSignals = map[InteractionType]float64{
	InteractionUnlock:   3.0,
	InteractionFavorite: 2.0,
	InteractionView:     1.0,
}

// ParseInteractionType converts a raw string to an InteractionType, returning
// an error for unknown values.
func ParseInteractionType(s string) (InteractionType, error) {
	t := InteractionType(s)
	switch t {
	case InteractionView, InteractionFavorite, InteractionUnfavorite, InteractionSearch, InteractionUnlock:
		return t, nil
	}
	return "", fmt.Errorf("unknown interaction type %q", s)
}

// ProfileSignal returns the multiplier of t and whether t contributes to a
// user profile at all.
func (t InteractionType) ProfileSignal() (float64, bool) {
	w, ok := profileSignals[t]
	return w, ok
}

// ProfileTypes returns the interaction types read when building a profile,
// strongest signal first.
func ProfileTypes() []InteractionType {
	return []InteractionType{InteractionUnlock, InteractionFavorite, InteractionView}
}

// Interaction is one observed user action. AdID is nil for events without a
// target ad, such as a plain search.
type Interaction struct {
	UserID    int64
	AdID      *int64
	Type      InteractionType
	CreatedAt time.Time
	Metadata  map[string]any
}

// AdViews is one row of a group-by-ad count.
type AdViews struct {
	AdID  int64
	Views int
}
