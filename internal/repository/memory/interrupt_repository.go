package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"ai-docpilot-be/pkg/agent/state"
)

// InterruptRepository parks awaiting-input pipeline snapshots keyed by
// resume token. Entries expire so abandoned interrupts do not pile up.
type InterruptRepository struct {
	cache *cache.Cache
}

func NewInterruptRepository() *InterruptRepository {
	// Snapshots live 15 minutes; expired items purge every 10 minutes
	c := cache.New(15*time.Minute, 10*time.Minute)
	return &InterruptRepository{
		cache: c,
	}
}

func (r *InterruptRepository) Park(token string, snapshot state.State) {
	r.cache.Set(token, snapshot, cache.DefaultExpiration)
}

// Take removes the snapshot so every token is single-use.
func (r *InterruptRepository) Take(token string) (state.State, bool) {
	if x, found := r.cache.Get(token); found {
		r.cache.Delete(token)
		return x.(state.State), true
	}
	return state.State{}, false
}
