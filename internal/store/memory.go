package store

import (
	"context"
	"sync"

	"github.com/fleetdata/trucksim/internal/models"
)

// MemoryVehicleStore is the default in-process VehicleStore. Records are
// copied on the way in and out, so a caller mutating its own struct can
// never expose a half-written vehicle to concurrent readers.
type MemoryVehicleStore struct {
	mu       sync.RWMutex
	vehicles map[string]models.SimulatedVehicle
}

func NewMemoryVehicleStore() *MemoryVehicleStore {
	return &MemoryVehicleStore{vehicles: make(map[string]models.SimulatedVehicle)}
}

func (s *MemoryVehicleStore) Get(_ context.Context, shipmentID string) (*models.SimulatedVehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vehicle, ok := s.vehicles[shipmentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &vehicle, nil
}

func (s *MemoryVehicleStore) Put(_ context.Context, vehicle *models.SimulatedVehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[vehicle.ShipmentID] = *vehicle
	return nil
}

func (s *MemoryVehicleStore) Delete(_ context.Context, shipmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vehicles, shipmentID)
	return nil
}

func (s *MemoryVehicleStore) All(_ context.Context) ([]*models.SimulatedVehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SimulatedVehicle, 0, len(s.vehicles))
	for _, vehicle := range s.vehicles {
		v := vehicle
		out = append(out, &v)
	}
	return out, nil
}

// MemoryActiveSet is the in-process active-simulation registry.
type MemoryActiveSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemoryActiveSet() *MemoryActiveSet {
	return &MemoryActiveSet{ids: make(map[string]struct{})}
}

func (s *MemoryActiveSet) Add(_ context.Context, shipmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[shipmentID] = struct{}{}
	return nil
}

func (s *MemoryActiveSet) Remove(_ context.Context, shipmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, shipmentID)
	return nil
}

func (s *MemoryActiveSet) Contains(_ context.Context, shipmentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[shipmentID]
	return ok, nil
}

func (s *MemoryActiveSet) IDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out, nil
}
