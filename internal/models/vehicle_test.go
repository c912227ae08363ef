package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]VehicleStatus{
		{StatusAwaiting, StatusIdle},
		{StatusIdle, StatusEnRoute},
		{StatusEnRoute, StatusPendingDelivery},
		{StatusEnRoute, StatusIdle},
		{StatusPendingDelivery, StatusCompleted},
	}
	for _, edge := range allowed {
		assert.Truef(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	rejected := [][2]VehicleStatus{
		{StatusIdle, StatusPendingDelivery},
		{StatusIdle, StatusCompleted},
		{StatusEnRoute, StatusCompleted},
		{StatusPendingDelivery, StatusEnRoute},
		{StatusCompleted, StatusEnRoute},
		{StatusCompleted, StatusIdle},
		{StatusAwaiting, StatusEnRoute},
	}
	for _, edge := range rejected {
		assert.Falsef(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestCanTransitionToError(t *testing.T) {
	for _, from := range []VehicleStatus{StatusAwaiting, StatusIdle, StatusEnRoute, StatusPendingDelivery} {
		assert.Truef(t, CanTransition(from, StatusError), "%s -> ERROR", from)
	}
	// Terminal states never leave, not even into the other terminal state.
	assert.False(t, CanTransition(StatusCompleted, StatusError))
	assert.False(t, CanTransition(StatusError, StatusError))
	assert.False(t, CanTransition(StatusError, StatusIdle))
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.False(t, StatusAwaiting.Terminal())
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusEnRoute.Terminal())
	assert.False(t, StatusPendingDelivery.Terminal())
}

func TestRequiresRoute(t *testing.T) {
	assert.True(t, StatusIdle.RequiresRoute())
	assert.True(t, StatusEnRoute.RequiresRoute())
	assert.True(t, StatusPendingDelivery.RequiresRoute())
	assert.True(t, StatusCompleted.RequiresRoute())
	assert.False(t, StatusAwaiting.RequiresRoute())
	assert.False(t, StatusError.RequiresRoute())
}

func TestRouteLength(t *testing.T) {
	vehicle := &SimulatedVehicle{}
	assert.Zero(t, vehicle.RouteLength())

	vehicle.Route = &Route{
		Points:       []Location{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}},
		LengthMeters: 1500,
	}
	assert.Equal(t, 1500.0, vehicle.RouteLength())

	vehicle.Route.Points = vehicle.Route.Points[:1]
	assert.Zero(t, vehicle.RouteLength())
}
