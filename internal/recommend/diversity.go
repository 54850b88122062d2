package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/model"
)

// DiversitySelector picks random available ads outside the user's usual
// types or budget, to keep recommendations from narrowing.
type DiversitySelector struct {
	catalog AdCatalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiversitySelector returns a selector whose shuffle is seeded with seed.
func NewDiversitySelector(catalog AdCatalog, seed int64) *DiversitySelector {
	return &DiversitySelector{
		catalog: catalog,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Select returns at most limit available ads that the user has not seen, are
// not in selected, and either have a type absent from the profile or a price
// outside its budget range.
func (d *DiversitySelector) Select(ctx context.Context, p *Profile, selected []int64, limit int) ([]model.Ad, error) {
	if limit <= 0 {
		return nil, nil
	}

	exclude := p.SeenIDs()
	exclude = append(exclude, selected...)
	pool, err := d.catalog.AvailableAds(ctx, model.AdQuery{ExcludeIDs: exclude})
	if err != nil {
		return nil, fmt.Errorf("diversity pool: %w", err)
	}

	picks := pool[:0:0]
	for _, ad := range pool {
		if !p.PrefersType(ad.TypeID) || !p.InBudget(ad.Price) {
			picks = append(picks, ad)
		}
	}

	d.mu.Lock()
	d.rng.Shuffle(len(picks), func(i, j int) { picks[i], picks[j] = picks[j], picks[i] })
	d.mu.Unlock()

	if len(picks) > limit {
		picks = picks[:limit]
	}
	return picks, nil
}
