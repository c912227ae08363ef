package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdata/trucksim/internal/geo"
	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/routing"
	log "github.com/sirupsen/logrus"
)

// VehicleFactory derives the initial simulated-vehicle record from a
// SimulationInput. Construction is pure: no store writes, no panics across
// the boundary; a failure comes back as an error with the cause logged.
type VehicleFactory struct {
	resolver routing.Resolver
	config   *models.Config
	logger   *log.Logger
	now      func() time.Time
}

func NewVehicleFactory(resolver routing.Resolver, config *models.Config, logger *log.Logger) *VehicleFactory {
	return &VehicleFactory{
		resolver: resolver,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Build maps the external status code onto an internal state, resolves a
// route when the state needs one, and places the vehicle on it.
func (f *VehicleFactory) Build(ctx context.Context, input *models.SimulationInput) (*models.SimulatedVehicle, error) {
	if input == nil || input.ShipmentID == "" {
		err := fmt.Errorf("simulation input missing shipment id")
		f.logger.WithError(err).Error("cannot build vehicle")
		return nil, err
	}

	status := models.ResolveExternalStatus(input.ExternalStatus)
	if !input.HasValidCoordinates() {
		// Bad coordinates trump whatever the upstream status claims.
		f.logger.WithField("shipment_id", input.ShipmentID).
			Warn("missing or out-of-range coordinates, awaiting status")
		status = models.StatusAwaiting
	}

	vehicle := &models.SimulatedVehicle{
		ShipmentID:      input.ShipmentID,
		Status:          status,
		AverageSpeed:    f.config.AverageSpeedMps,
		SpeedMultiplier: f.speedMultiplier(input),
		LastUpdateTime:  f.now(),
		DriverName:      input.DriverName,
		TruckLabel:      input.TruckLabel,
	}
	if input.Origin != nil {
		vehicle.Origin = *input.Origin
	}
	if input.Destination != nil {
		vehicle.Destination = *input.Destination
	}

	if status.RequiresRoute() {
		route := input.Route
		if !route.Usable() {
			resolved, err := f.resolver.Resolve(ctx, vehicle.Origin, vehicle.Destination)
			if err != nil {
				f.logger.WithFields(log.Fields{
					"shipment_id": input.ShipmentID,
					"status":      string(status),
				}).WithError(err).Error("route resolution failed for route-mandatory status")
				vehicle.Status = models.StatusError
				f.placePlaceholder(vehicle, input)
				return vehicle, nil
			}
			route = resolved
		}
		vehicle.Route = route
		if err := f.placeOnRoute(vehicle, input, status); err != nil {
			f.logger.WithField("shipment_id", input.ShipmentID).
				WithError(err).Error("initial placement failed")
			vehicle.Status = models.StatusError
			vehicle.Route = nil
			f.placePlaceholder(vehicle, input)
		}
		return vehicle, nil
	}

	f.placePlaceholder(vehicle, input)
	return vehicle, nil
}

func (f *VehicleFactory) speedMultiplier(input *models.SimulationInput) float64 {
	if input.SpeedMultiplier > 0 {
		return input.SpeedMultiplier
	}
	return f.config.SpeedMultiplier
}

// placeOnRoute computes position, bearing and traveled distance for the
// states that live on the polyline. All geodesic math runs over the
// resolved route, never the raw origin-destination line.
func (f *VehicleFactory) placeOnRoute(vehicle *models.SimulatedVehicle, input *models.SimulationInput, status models.VehicleStatus) error {
	points := vehicle.Route.Points
	length := vehicle.Route.LengthMeters

	switch status {
	case models.StatusIdle:
		_, bearing, err := geo.PointAlong(points, 0)
		if err != nil {
			return err
		}
		vehicle.Position = points[0]
		vehicle.TraveledDistance = 0
		vehicle.Bearing = bearing

	case models.StatusEnRoute:
		distance := clamp(input.ResumeDistance, 0, length)
		position, bearing, err := geo.PointAlong(points, distance)
		if err != nil {
			return err
		}
		if distance == 0 {
			position = points[0]
		}
		vehicle.Position = position
		vehicle.TraveledDistance = distance
		vehicle.Bearing = bearing

	case models.StatusPendingDelivery, models.StatusCompleted:
		bearing, err := geo.FinalBearing(points)
		if err != nil {
			return err
		}
		vehicle.Position = points[len(points)-1]
		vehicle.TraveledDistance = length
		vehicle.Bearing = bearing
	}
	return nil
}

// placePlaceholder parks the record at the origin, or the neutral fallback
// when the origin itself is unusable. Callers must not read this as real
// telemetry.
func (f *VehicleFactory) placePlaceholder(vehicle *models.SimulatedVehicle, input *models.SimulationInput) {
	position := models.FallbackLocation
	if input.Origin != nil && input.Origin.Valid() {
		position = *input.Origin
	}
	vehicle.Position = position
	vehicle.TraveledDistance = 0
	vehicle.Bearing = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
