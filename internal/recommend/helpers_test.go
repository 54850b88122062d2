package recommend_test

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/recommend"
	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/store"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }

const day = 24 * time.Hour

// newAd returns an available ad created age before now. city 0 means no
// location group.
func newAd(id, typeID, city int64, price float64, age time.Duration) model.Ad {
	a := model.Ad{
		ID:        id,
		TypeID:    typeID,
		Price:     price,
		Status:    model.StatusAvailable,
		CreatedAt: now.Add(-age),
	}
	if city != 0 {
		a.LocationGroupID = ptr(city)
	}
	return a
}

func boosted(a model.Ad, score float64) model.Ad {
	a.IsBoosted = true
	a.BoostScore = score
	return a
}

func event(userID, adID int64, typ model.InteractionType, age time.Duration) model.Interaction {
	return model.Interaction{UserID: userID, AdID: ptr(adID), Type: typ, CreatedAt: now.Add(-age)}
}

func testSettings() recommend.Settings {
	s := recommend.DefaultSettings()
	s.Seed = 7
	return s
}

func newEngine(t *testing.T, st *store.Memory, c recommend.Cache) *recommend.Engine {
	t.Helper()
	return recommend.NewEngine(st, st, c, testSettings(), zerolog.New(io.Discard), recommend.WithClock(fixedClock))
}

func adIDs(ads []model.Ad) []int64 {
	out := make([]int64, len(ads))
	for i, a := range ads {
		out[i] = a.ID
	}
	return out
}
