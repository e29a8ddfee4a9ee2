package repository

import "sync"

type coordinates struct {
	lat float64
	lng float64
}

// geocodeCache memoizes location lookups. Coordinates for a city never
// change, so entries are written once and reused for the process lifetime.
type geocodeCache struct {
	mu        sync.RWMutex
	locations map[string]coordinates
}

func NewGeocodeCache() *geocodeCache {
	return &geocodeCache{locations: make(map[string]coordinates)}
}

func (c *geocodeCache) Get(location string) (lat, lng float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	coords, ok := c.locations[location]
	return coords.lat, coords.lng, ok
}

func (c *geocodeCache) Set(location string, lat, lng float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.locations[location] = coordinates{lat: lat, lng: lng}
}
