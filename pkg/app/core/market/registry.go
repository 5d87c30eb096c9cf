package market

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks the markets running in this process and the latest
// snapshot each has published. It is the only market state shared across
// goroutines.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Snapshot // id -> latest snapshot
}

func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*Snapshot),
	}
}

// Register adds a simulation under its id, publishing its initial snapshot.
// Returns error if a market with the same id already exists.
func (r *Registry) Register(s *Simulation) error {
	if s == nil {
		return fmt.Errorf("cannot register nil simulation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[s.ID()]; exists {
		return fmt.Errorf("market %s already registered", s.ID())
	}

	snap := s.Snapshot()
	r.markets[snap.ID] = &snap
	return nil
}

// Publish replaces the snapshot of a registered market. Snapshots of unknown
// markets are dropped.
func (r *Registry) Publish(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[snap.ID]; !exists {
		return
	}
	r.markets[snap.ID] = &snap
}

// Get returns the latest snapshot of a market.
func (r *Registry) Get(id string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, exists := r.markets[id]
	if !exists {
		return Snapshot{}, fmt.Errorf("market %s not found", id)
	}
	return *snap, nil
}

// List returns the latest snapshot of every market, ordered by id.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.markets))
	for _, snap := range r.markets {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListOpen returns only markets that have not closed.
func (r *Registry) ListOpen() []Snapshot {
	var out []Snapshot
	for _, snap := range r.List() {
		if !snap.Closed {
			out = append(out, snap)
		}
	}
	return out
}

// Remove drops a closed market from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, exists := r.markets[id]
	if !exists {
		return fmt.Errorf("market %s not found", id)
	}
	if !snap.Closed {
		return fmt.Errorf("cannot remove market %s while it is open", id)
	}
	delete(r.markets, id)
	return nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[id]
	return exists
}
