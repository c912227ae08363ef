// Package routing resolves road-following polylines between shipment
// endpoints. The default chain asks an OSRM-compatible directions provider
// and falls back to a synthetic straight-line route when the provider is
// unreachable, times out, or mock routes are forced by configuration.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fleetdata/trucksim/internal/geo"
	"github.com/fleetdata/trucksim/internal/models"
	log "github.com/sirupsen/logrus"
)

// ErrRouteUnavailable signals that no route could be produced for the pair.
var ErrRouteUnavailable = errors.New("routing: route unavailable")

// Resolver produces a route polyline between two validated coordinates.
// Implementations must return an error instead of panicking; a timeout is
// reported the same way as any other provider failure.
type Resolver interface {
	Resolve(ctx context.Context, origin, destination models.Location) (*models.Route, error)
}

// OSRMResolver fetches driving routes from an OSRM-compatible HTTP API.
type OSRMResolver struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

func NewOSRMResolver(baseURL string, timeout time.Duration, logger *log.Logger) *OSRMResolver {
	return &OSRMResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (r *OSRMResolver) Resolve(ctx context.Context, origin, destination models.Location) (*models.Route, error) {
	if !origin.Valid() || !destination.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrRouteUnavailable)
	}

	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		r.baseURL, origin.Lon, origin.Lat, destination.Lon, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: directions provider status %d", ErrRouteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}

	var obj struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("%w: provider returned no usable geometry", ErrRouteUnavailable)
	}

	coords := obj.Routes[0].Geometry.Coordinates
	points := make([]models.Location, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		points = append(points, models.Location{Lat: c[1], Lon: c[0]}) // geojson is [lon, lat]
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: provider returned no usable geometry", ErrRouteUnavailable)
	}

	length := obj.Routes[0].Distance
	if length <= 0 {
		length = geo.PathLength(points)
	}

	return &models.Route{Points: points, LengthMeters: length}, nil
}

// FallbackResolver tries the primary resolver and degrades to the fallback
// on any failure. The fallback's error, if it also fails, is what callers see.
type FallbackResolver struct {
	primary  Resolver
	fallback Resolver
	logger   *log.Logger
}

func NewFallbackResolver(primary, fallback Resolver, logger *log.Logger) *FallbackResolver {
	return &FallbackResolver{primary: primary, fallback: fallback, logger: logger}
}

func (r *FallbackResolver) Resolve(ctx context.Context, origin, destination models.Location) (*models.Route, error) {
	route, err := r.primary.Resolve(ctx, origin, destination)
	if err == nil {
		return route, nil
	}
	r.logger.WithError(err).Warn("directions provider failed, using synthetic route")
	return r.fallback.Resolve(ctx, origin, destination)
}

// NewFromConfig wires the resolver chain the engine uses: a cache in front
// of either the mock resolver alone (use_mock_routes) or OSRM with the mock
// as fallback.
func NewFromConfig(cfg *models.Config, logger *log.Logger) Resolver {
	var inner Resolver
	if cfg.UseMockRoutes {
		inner = NewMockResolver()
	} else {
		osrm := NewOSRMResolver(cfg.OSRMBaseURL, cfg.RouteTimeout, logger)
		inner = NewFallbackResolver(osrm, NewMockResolver(), logger)
	}
	return NewCachingResolver(inner, cfg.RouteCacheSize)
}
