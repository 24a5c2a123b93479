package registry

import (
	"context"
	"sync"

	"github.com/i474232898/weather-bot/internal/geo"
)

// MemoryRegistry is a concurrency-safe in-memory Registry. Contents are lost on restart.
type MemoryRegistry struct {
	mu sync.RWMutex

	// key: user id, value: location name -> location
	data map[int64]map[string]geo.Location
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		data: make(map[int64]map[string]geo.Location),
	}
}

func (r *MemoryRegistry) Keys(_ context.Context, userID int64) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	locations := r.data[userID]
	keys := make([]string, 0, len(locations))
	for name := range locations {
		keys = append(keys, name)
	}
	return keys, nil
}

func (r *MemoryRegistry) Add(_ context.Context, userID int64, name string, loc geo.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	locations, ok := r.data[userID]
	if !ok {
		locations = make(map[string]geo.Location)
		r.data[userID] = locations
	}
	locations[name] = loc
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, userID int64, name string) (geo.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.data[userID][name]
	if !ok {
		return geo.Location{}, ErrNotFound
	}
	return loc, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, userID int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	locations, ok := r.data[userID]
	if !ok {
		return nil
	}
	delete(locations, name)
	if len(locations) == 0 {
		delete(r.data, userID)
	}
	return nil
}
