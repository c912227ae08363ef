package routing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/fleetdata/trucksim/internal/geo"
	"github.com/fleetdata/trucksim/internal/models"
)

// midpointJitterMeters displaces the synthetic midpoint so a fallback route
// is never a degenerate two-point polyline lying exactly on the great
// circle. About a city block.
const midpointJitterMeters = 120.0

// MockResolver synthesizes a straight-line route between the endpoints,
// inserting a slightly jittered midpoint.
type MockResolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockResolver() *MockResolver {
	return &MockResolver{rng: rand.New(rand.NewSource(rand.Int63()))}
}

// NewSeededMockResolver pins the jitter for reproducible routes.
func NewSeededMockResolver(seed int64) *MockResolver {
	return &MockResolver{rng: rand.New(rand.NewSource(seed))}
}

func (m *MockResolver) Resolve(_ context.Context, origin, destination models.Location) (*models.Route, error) {
	if !origin.Valid() || !destination.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrRouteUnavailable)
	}

	mid := models.Location{
		Lat: (origin.Lat + destination.Lat) / 2,
		Lon: (origin.Lon + destination.Lon) / 2,
	}
	mid = m.jitter(mid, midpointJitterMeters)

	points := []models.Location{origin, mid, destination}
	return &models.Route{
		Points:       points,
		LengthMeters: geo.PathLength(points),
		Synthetic:    true,
	}, nil
}

func (m *MockResolver) jitter(base models.Location, meters float64) models.Location {
	m.mu.Lock()
	defer m.mu.Unlock()

	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	if lonMetersPerDeg < 1 {
		lonMetersPerDeg = 1 // polar degenerate case
	}
	dLat := (m.rng.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (m.rng.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}
