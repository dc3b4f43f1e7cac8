package cart

import (
	"sync"
	"time"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type entry struct {
	store    *Store
	lastSeen time.Time
}

// Registry keeps one Store per session so optimistic state never leaks
// between callers.
type Registry struct {
	mu     sync.Mutex
	policy pricing.DeliveryPolicy
	stores map[string]*entry
	now    func() time.Time
}

// NewRegistry creates an empty registry whose stores price with policy.
func NewRegistry(policy pricing.DeliveryPolicy) *Registry {
	return &Registry{policy: policy, stores: map[string]*entry{}, now: time.Now}
}

// Get returns the store for session, creating it on first use.
func (r *Registry) Get(session string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stores[session]
	if !ok {
		e = &entry{store: NewStore(r.policy)}
		r.stores[session] = e
		obs.SetGauge(obs.ActiveSessions, float64(len(r.stores)))
	}
	e.lastSeen = r.now()
	return e.store
}

// Sweep drops stores not touched for longer than idle and reports how many
// were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	removed := 0
	for session, e := range r.stores {
		if e.lastSeen.Before(cutoff) {
			delete(r.stores, session)
			removed++
		}
	}
	obs.SetGauge(obs.ActiveSessions, float64(len(r.stores)))
	return removed
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
