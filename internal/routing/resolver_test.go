package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetdata/trucksim/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOrigin      = models.Location{Lat: 3.1493, Lon: 101.6953}
	testDestination = models.Location{Lat: 1.4927, Lon: 103.7414}
)

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

func TestMockResolver(t *testing.T) {
	resolver := NewSeededMockResolver(42)

	route, err := resolver.Resolve(context.Background(), testOrigin, testDestination)
	require.NoError(t, err)
	require.Len(t, route.Points, 3)
	assert.True(t, route.Synthetic)
	assert.Equal(t, testOrigin, route.Points[0])
	assert.Equal(t, testDestination, route.Points[2])
	assert.Greater(t, route.LengthMeters, 0.0)

	// The midpoint carries jitter but stays near the geometric midpoint.
	mid := route.Points[1]
	assert.InDelta(t, (testOrigin.Lat+testDestination.Lat)/2, mid.Lat, 0.01)
	assert.InDelta(t, (testOrigin.Lon+testDestination.Lon)/2, mid.Lon, 0.01)
}

func TestMockResolverRejectsInvalidCoordinates(t *testing.T) {
	resolver := NewMockResolver()
	_, err := resolver.Resolve(context.Background(), testOrigin, models.Location{Lat: 200, Lon: 10})
	assert.ErrorIs(t, err, ErrRouteUnavailable)
}

func TestOSRMResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"routes":[{"distance":291000,"geometry":{"coordinates":[[101.6953,3.1493],[102.7,2.3],[103.7414,1.4927]]}}]}`)
	}))
	defer server.Close()

	resolver := NewOSRMResolver(server.URL, time.Second, testLogger())
	route, err := resolver.Resolve(context.Background(), testOrigin, testDestination)
	require.NoError(t, err)
	require.Len(t, route.Points, 3)
	assert.False(t, route.Synthetic)
	assert.Equal(t, 291000.0, route.LengthMeters)
	// geojson order is [lon, lat]
	assert.Equal(t, testOrigin, route.Points[0])
}

func TestOSRMResolverFailures(t *testing.T) {
	t.Run("provider error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		resolver := NewOSRMResolver(server.URL, time.Second, testLogger())
		_, err := resolver.Resolve(context.Background(), testOrigin, testDestination)
		assert.ErrorIs(t, err, ErrRouteUnavailable)
	})

	t.Run("timeout reported as failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		resolver := NewOSRMResolver(server.URL, 20*time.Millisecond, testLogger())
		_, err := resolver.Resolve(context.Background(), testOrigin, testDestination)
		assert.ErrorIs(t, err, ErrRouteUnavailable)
	})

	t.Run("empty geometry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"routes":[]}`)
		}))
		defer server.Close()

		resolver := NewOSRMResolver(server.URL, time.Second, testLogger())
		_, err := resolver.Resolve(context.Background(), testOrigin, testDestination)
		assert.ErrorIs(t, err, ErrRouteUnavailable)
	})
}

type failingResolver struct{ calls int }

func (f *failingResolver) Resolve(context.Context, models.Location, models.Location) (*models.Route, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestFallbackResolver(t *testing.T) {
	primary := &failingResolver{}
	resolver := NewFallbackResolver(primary, NewSeededMockResolver(1), testLogger())

	route, err := resolver.Resolve(context.Background(), testOrigin, testDestination)
	require.NoError(t, err)
	assert.True(t, route.Synthetic)
	assert.Equal(t, 1, primary.calls)
}

type countingResolver struct {
	inner Resolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, o, d models.Location) (*models.Route, error) {
	c.calls++
	return c.inner.Resolve(ctx, o, d)
}

func TestCachingResolver(t *testing.T) {
	counting := &countingResolver{inner: NewSeededMockResolver(7)}
	cache := NewCachingResolver(counting, 2)

	first, err := cache.Resolve(context.Background(), testOrigin, testDestination)
	require.NoError(t, err)
	second, err := cache.Resolve(context.Background(), testOrigin, testDestination)
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls)
	assert.Same(t, first, second)

	// Failures are not cached.
	_, err = cache.Resolve(context.Background(), testOrigin, models.Location{Lat: 200})
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestCachingResolverEviction(t *testing.T) {
	counting := &countingResolver{inner: NewSeededMockResolver(7)}
	cache := NewCachingResolver(counting, 2)

	pairs := []models.Location{
		{Lat: 1, Lon: 1},
		{Lat: 2, Lon: 2},
		{Lat: 3, Lon: 3},
	}
	for _, p := range pairs {
		_, err := cache.Resolve(context.Background(), testOrigin, p)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	// Oldest entry was evicted, resolving it again hits the inner resolver.
	before := counting.calls
	_, err := cache.Resolve(context.Background(), testOrigin, pairs[0])
	require.NoError(t, err)
	assert.Equal(t, before+1, counting.calls)
}
