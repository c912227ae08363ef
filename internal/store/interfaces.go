// Package store defines the keyed persistence behind the simulation
// engine: vehicle state by shipment id, and the authoritative set of
// shipment ids currently ticking. Single-key operations are atomic;
// nothing here is cross-key transactional, callers lean on existence
// checks and idempotent writes instead.
package store

import (
	"context"
	"errors"

	"github.com/fleetdata/trucksim/internal/models"
)

var ErrNotFound = errors.New("store: not found")

// VehicleStore holds the current simulated-vehicle record per shipment.
// Put replaces the whole record so readers never observe a partial update.
type VehicleStore interface {
	Get(ctx context.Context, shipmentID string) (*models.SimulatedVehicle, error)
	Put(ctx context.Context, vehicle *models.SimulatedVehicle) error
	Delete(ctx context.Context, shipmentID string) error
	All(ctx context.Context) ([]*models.SimulatedVehicle, error)
}

// ActiveSet is the registry of shipment ids with a running simulation.
// Add and Remove are idempotent; removing an absent id is a no-op.
type ActiveSet interface {
	Add(ctx context.Context, shipmentID string) error
	Remove(ctx context.Context, shipmentID string) error
	Contains(ctx context.Context, shipmentID string) (bool, error)
	IDs(ctx context.Context) ([]string, error)
}
