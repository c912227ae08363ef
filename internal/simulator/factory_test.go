package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/routing"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOrigin      = models.Location{Lat: 3.1493, Lon: 101.6953}
	testDestination = models.Location{Lat: 1.4927, Lon: 103.7414}
)

func testConfig() *models.Config {
	return &models.Config{
		TickInterval:          10 * time.Millisecond,
		AverageSpeedMps:       10,
		SpeedMultiplier:       1,
		ClockFailureTickLimit: 3,
		RouteCacheSize:        16,
		SyncQueueSize:         16,
	}
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

type erroringResolver struct{}

func (erroringResolver) Resolve(context.Context, models.Location, models.Location) (*models.Route, error) {
	return nil, errors.New("provider down")
}

func testInput(status string) *models.SimulationInput {
	origin := testOrigin
	destination := testDestination
	return &models.SimulationInput{
		ShipmentID:     "SHP-1",
		Origin:         &origin,
		Destination:    &destination,
		ExternalStatus: status,
		DriverName:     "Aminah Binti Yusof",
		TruckLabel:     "Volvo FH16",
	}
}

func newTestFactory() *VehicleFactory {
	return NewVehicleFactory(routing.NewSeededMockResolver(1), testConfig(), testLogger())
}

func TestBuildInTransit(t *testing.T) {
	// Scenario: external IN_TRANSIT with no resume distance places the
	// vehicle at the origin with zero traveled distance.
	factory := newTestFactory()
	vehicle, err := factory.Build(context.Background(), testInput("IN_TRANSIT"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusEnRoute, vehicle.Status)
	assert.Equal(t, testOrigin, vehicle.Position)
	assert.Zero(t, vehicle.TraveledDistance)
	require.True(t, vehicle.Route.Usable())
	assert.Equal(t, testOrigin, vehicle.Route.Points[0])
	assert.Equal(t, "Aminah Binti Yusof", vehicle.DriverName)
}

func TestBuildCompleted(t *testing.T) {
	factory := newTestFactory()
	vehicle, err := factory.Build(context.Background(), testInput("COMPLETED"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, vehicle.Status)
	assert.Equal(t, testDestination, vehicle.Position)
	assert.Equal(t, vehicle.Route.LengthMeters, vehicle.TraveledDistance)
}

func TestBuildInvalidCoordinatesForceAwaiting(t *testing.T) {
	factory := newTestFactory()

	input := testInput("IN_TRANSIT")
	input.Destination = &models.Location{Lat: 200, Lon: 103.7414}
	vehicle, err := factory.Build(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaiting, vehicle.Status)
	assert.Nil(t, vehicle.Route)
	assert.Equal(t, testOrigin, vehicle.Position) // origin still usable as placeholder
	assert.Zero(t, vehicle.Bearing)

	input = testInput("IN_TRANSIT")
	input.Origin = nil
	vehicle, err = factory.Build(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaiting, vehicle.Status)
	assert.Equal(t, models.FallbackLocation, vehicle.Position)
}

func TestBuildResolverFailureDowngradesToError(t *testing.T) {
	factory := NewVehicleFactory(erroringResolver{}, testConfig(), testLogger())
	vehicle, err := factory.Build(context.Background(), testInput("IN_TRANSIT"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, vehicle.Status)
	assert.Nil(t, vehicle.Route)
	assert.Equal(t, testOrigin, vehicle.Position)
}

func TestBuildAwaitingSkipsResolver(t *testing.T) {
	// Statuses without a route requirement must not touch the resolver at
	// all; a broken provider is irrelevant to them.
	factory := NewVehicleFactory(erroringResolver{}, testConfig(), testLogger())
	vehicle, err := factory.Build(context.Background(), testInput("CANCELLED"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaiting, vehicle.Status)
}

func TestBuildResumeDistance(t *testing.T) {
	factory := newTestFactory()

	input := testInput("IN_TRANSIT")
	input.ResumeDistance = 1000
	vehicle, err := factory.Build(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, vehicle.TraveledDistance)
	assert.NotEqual(t, testOrigin, vehicle.Position)

	// Resume distance beyond the route clamps to the destination.
	input = testInput("IN_TRANSIT")
	input.ResumeDistance = 1e12
	vehicle, err = factory.Build(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, vehicle.Route.LengthMeters, vehicle.TraveledDistance)

	input = testInput("IN_TRANSIT")
	input.ResumeDistance = -50
	vehicle, err = factory.Build(context.Background(), input)
	require.NoError(t, err)
	assert.Zero(t, vehicle.TraveledDistance)
	assert.Equal(t, testOrigin, vehicle.Position)
}

func TestBuildPreSuppliedRoute(t *testing.T) {
	factory := NewVehicleFactory(erroringResolver{}, testConfig(), testLogger())

	input := testInput("PLANNED")
	input.Route = &models.Route{
		Points:       []models.Location{testOrigin, testDestination},
		LengthMeters: 290000,
	}
	vehicle, err := factory.Build(context.Background(), input)
	require.NoError(t, err)

	// The resolver failed, but the supplied route made it irrelevant.
	assert.Equal(t, models.StatusIdle, vehicle.Status)
	assert.Same(t, input.Route, vehicle.Route)
	assert.Equal(t, testOrigin, vehicle.Position)
}

func TestBuildSpeedDefaults(t *testing.T) {
	factory := newTestFactory()

	vehicle, err := factory.Build(context.Background(), testInput("PLANNED"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, vehicle.AverageSpeed)
	assert.Equal(t, 1.0, vehicle.SpeedMultiplier)

	input := testInput("PLANNED")
	input.SpeedMultiplier = 120
	vehicle, err = factory.Build(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 120.0, vehicle.SpeedMultiplier)
}

func TestBuildMissingShipmentID(t *testing.T) {
	factory := newTestFactory()

	_, err := factory.Build(context.Background(), &models.SimulationInput{})
	assert.Error(t, err)

	_, err = factory.Build(context.Background(), nil)
	assert.Error(t, err)
}
