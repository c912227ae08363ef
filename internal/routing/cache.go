package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetdata/trucksim/internal/models"
)

// CachingResolver memoises resolved routes by coordinate pair. Eviction is
// FIFO; route geometry for a fixed pair does not go stale within a run.
type CachingResolver struct {
	inner Resolver

	mu      sync.Mutex
	entries map[string]*models.Route
	order   []string
	max     int
}

func NewCachingResolver(inner Resolver, size int) *CachingResolver {
	if size <= 0 {
		size = 256
	}
	return &CachingResolver{
		inner:   inner,
		entries: make(map[string]*models.Route),
		max:     size,
	}
}

func cacheKey(origin, destination models.Location) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f", origin.Lon, origin.Lat, destination.Lon, destination.Lat)
}

func (c *CachingResolver) Resolve(ctx context.Context, origin, destination models.Location) (*models.Route, error) {
	key := cacheKey(origin, destination)

	c.mu.Lock()
	if route, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return route, nil
	}
	c.mu.Unlock()

	route, err := c.inner.Resolve(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = route
		c.order = append(c.order, key)
	}
	return route, nil
}

// Len reports the number of cached routes.
func (c *CachingResolver) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
