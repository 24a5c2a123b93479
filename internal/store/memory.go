package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-bot/internal/geo"
	"github.com/i474232898/weather-bot/internal/weather"
)

var (
	// ErrNotFound is returned when no fresh forecast is cached for a location.
	ErrNotFound = errors.New("no cached forecast for location")
)

type cachedForecast struct {
	forecast  weather.ParsedForecast
	fetchedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory cache of parsed forecasts.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key
	data map[string]cachedForecast

	// retention configuration
	maxEntries int           // max number of cached locations
	maxAge     time.Duration // forecasts older than this are not served

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries is <= 0, it is treated as unlimited; if maxAge is <= 0
// nothing is ever served from the cache.
func NewMemoryStore(maxEntries int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]cachedForecast),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveForecast stores forecast for loc and enforces retention.
func (s *MemoryStore) SaveForecast(loc geo.Location, forecast weather.ParsedForecast) {
	key := loc.String()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = cachedForecast{forecast: forecast, fetchedAt: now}

	// Enforce retention by age.
	for k, c := range s.data {
		if now.Sub(c.fetchedAt) > s.maxAge {
			delete(s.data, k)
		}
	}

	// Enforce retention by count, oldest first.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, c := range s.data {
			if oldestKey == "" || c.fetchedAt.Before(oldest) {
				oldestKey, oldest = k, c.fetchedAt
			}
		}
		delete(s.data, oldestKey)
	}
}

// GetForecast returns the cached forecast for loc if it is still fresh.
func (s *MemoryStore) GetForecast(loc geo.Location) (weather.ParsedForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[loc.String()]
	if !ok || s.now().Sub(c.fetchedAt) > s.maxAge {
		return weather.ParsedForecast{}, ErrNotFound
	}
	return c.forecast, nil
}

// Len returns the number of cached locations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
