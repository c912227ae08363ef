package models

import "time"

type VehicleStatus string

const (
	StatusAwaiting        VehicleStatus = "AWAITING_STATUS"
	StatusIdle            VehicleStatus = "IDLE"
	StatusEnRoute         VehicleStatus = "EN_ROUTE"
	StatusPendingDelivery VehicleStatus = "PENDING_DELIVERY_CONFIRMATION"
	StatusCompleted       VehicleStatus = "COMPLETED"
	StatusError           VehicleStatus = "ERROR"
)

// SimulatedVehicle is the synthetic representation of a truck used when live
// GPS telemetry is unavailable. Position, bearing and traveled distance are
// only meaningful relative to Route; when Status is AWAITING_STATUS or ERROR
// they are placeholders.
type SimulatedVehicle struct {
	ShipmentID       string        `json:"shipment_id" bson:"shipment_id"`
	Status           VehicleStatus `json:"status" bson:"status"`
	Origin           Location      `json:"origin" bson:"origin"`
	Destination      Location      `json:"destination" bson:"destination"`
	Route            *Route        `json:"route,omitempty" bson:"route,omitempty"`
	TraveledDistance float64       `json:"traveled_distance" bson:"traveled_distance"` // meters along Route
	Position         Location      `json:"position" bson:"position"`
	Bearing          float64       `json:"bearing" bson:"bearing"` // degrees clockwise from north
	AverageSpeed     float64       `json:"average_speed" bson:"average_speed"` // m/s before multiplier
	SpeedMultiplier  float64       `json:"speed_multiplier" bson:"speed_multiplier"`
	LastUpdateTime   time.Time     `json:"last_update_time" bson:"last_update_time"`

	// Descriptive passthrough fields, opaque to the engine.
	DriverName string `json:"driver_name,omitempty" bson:"driver_name,omitempty"`
	TruckLabel string `json:"truck_label,omitempty" bson:"truck_label,omitempty"`
}

// RouteLength returns the total route length, or 0 when no usable route exists.
func (v *SimulatedVehicle) RouteLength() float64 {
	if !v.Route.Usable() {
		return 0
	}
	return v.Route.LengthMeters
}

// Terminal reports whether the status ends the current simulation run.
func (s VehicleStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// RequiresRoute reports whether the status is only meaningful with a
// resolved route polyline behind it.
func (s VehicleStatus) RequiresRoute() bool {
	switch s {
	case StatusIdle, StatusEnRoute, StatusPendingDelivery, StatusCompleted:
		return true
	}
	return false
}

// allowedTransitions is the visible state machine. Transitions to ERROR from
// any non-terminal state are permitted in addition to these edges.
var allowedTransitions = map[VehicleStatus][]VehicleStatus{
	StatusAwaiting:        {StatusIdle, StatusError},
	StatusIdle:            {StatusEnRoute},
	StatusEnRoute:         {StatusPendingDelivery, StatusIdle},
	StatusPendingDelivery: {StatusCompleted},
}

// CanTransition reports whether moving from -> to is a legal edge.
func CanTransition(from, to VehicleStatus) bool {
	if to == StatusError {
		return !from.Terminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
