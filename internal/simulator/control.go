package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/store"
	log "github.com/sirupsen/logrus"
)

// FailureCode classifies externally reported failures.
type FailureCode string

const (
	FailureInvalidInput       FailureCode = "INVALID_INPUT"
	FailureRouteUnavailable   FailureCode = "ROUTE_UNAVAILABLE"
	FailureCalculation        FailureCode = "CALCULATION_FAILURE"
	FailurePersistence        FailureCode = "PERSISTENCE_FAILURE"
	FailureTransitionRejected FailureCode = "TRANSITION_REJECTED"
	FailureInternal           FailureCode = "INTERNAL"
)

// OpError is the structured failure shape every control operation returns
// instead of panicking.
type OpError struct {
	Code FailureCode
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(code FailureCode, err error) *OpError {
	return &OpError{Code: code, Err: err}
}

// StopResult reports the two halves of a stop separately: removal from the
// active registry and persistence of the patched state have different
// consistency implications for the caller.
type StopResult struct {
	Success      bool
	UpdatedState *models.SimulatedVehicle // nil when no state record existed
	RegistryErr  error
	StateErr     error
}

// Start begins or rejoins a simulation. An existing record is returned
// unchanged (idempotent rejoin) after making sure it is still marked
// active; otherwise the factory builds a fresh vehicle, state is written
// first and the registry entry second, with best-effort rollback if the
// registry write fails.
func (e *Engine) Start(ctx context.Context, input *models.SimulationInput) (vehicle *models.SimulatedVehicle, err error) {
	defer e.recoverToError(&err)

	if input == nil || input.ShipmentID == "" {
		return nil, opError(FailureInvalidInput, errors.New("simulation input missing shipment id"))
	}

	existing, getErr := e.vehicles.Get(ctx, input.ShipmentID)
	if getErr == nil {
		if addErr := e.active.Add(ctx, input.ShipmentID); addErr != nil {
			return nil, opError(FailurePersistence, fmt.Errorf("re-activate registry entry: %w", addErr))
		}
		if existing.Status == models.StatusEnRoute {
			e.ensureClockRunning()
		}
		e.logger.WithField("shipment_id", input.ShipmentID).Debug("start rejoined existing simulation")
		return existing, nil
	}
	if !errors.Is(getErr, store.ErrNotFound) {
		return nil, opError(FailurePersistence, fmt.Errorf("read vehicle state: %w", getErr))
	}

	built, buildErr := e.factory.Build(ctx, input)
	if buildErr != nil {
		return nil, opError(FailureInvalidInput, buildErr)
	}

	if putErr := e.vehicles.Put(ctx, built); putErr != nil {
		return nil, opError(FailurePersistence, fmt.Errorf("write vehicle state: %w", putErr))
	}
	if addErr := e.active.Add(ctx, input.ShipmentID); addErr != nil {
		// Best-effort rollback of the state write; the registry stays
		// authoritative for what is running.
		if delErr := e.vehicles.Delete(ctx, input.ShipmentID); delErr != nil {
			e.logger.WithField("shipment_id", input.ShipmentID).WithError(delErr).
				Error("rollback of partial start failed")
		}
		return nil, opError(FailurePersistence, fmt.Errorf("register active simulation: %w", addErr))
	}

	if built.Status == models.StatusEnRoute {
		e.ensureClockRunning()
	}

	e.logger.WithFields(log.Fields{
		"shipment_id": built.ShipmentID,
		"status":      string(built.Status),
	}).Info("simulation started")
	return built, nil
}

// Stop halts a simulation. Registry removal is attempted unconditionally
// and is a safe no-op when nothing is running. Existing non-terminal state
// is patched to Idle with position preserved, so the run can resume later.
func (e *Engine) Stop(ctx context.Context, shipmentID string) StopResult {
	result := StopResult{}

	result.RegistryErr = e.active.Remove(ctx, shipmentID)
	if result.RegistryErr != nil {
		e.logger.WithField("shipment_id", shipmentID).WithError(result.RegistryErr).
			Error("active registry removal failed")
	}

	vehicle, err := e.vehicles.Get(ctx, shipmentID)
	if errors.Is(err, store.ErrNotFound) {
		result.Success = result.RegistryErr == nil
		return result
	}
	if err != nil {
		result.StateErr = err
		return result
	}

	updated := *vehicle
	if !updated.Status.Terminal() {
		updated.Status = models.StatusIdle
	}
	updated.LastUpdateTime = e.now()
	if err := e.vehicles.Put(ctx, &updated); err != nil {
		result.StateErr = err
		return result
	}

	result.UpdatedState = &updated
	result.Success = result.RegistryErr == nil
	e.logger.WithField("shipment_id", shipmentID).Info("simulation stopped")
	return result
}

// ConfirmPickup moves an Idle vehicle onto the road. The update timestamp
// is refreshed so the first tick measures its delta from now, not from
// however long the vehicle sat idle.
func (e *Engine) ConfirmPickup(ctx context.Context, shipmentID string) (vehicle *models.SimulatedVehicle, err error) {
	defer e.recoverToError(&err)
	updated, err := e.transition(ctx, shipmentID, models.StatusIdle, models.StatusEnRoute)
	if err != nil {
		return nil, err
	}
	// A stopped run has no registry entry anymore; the clock only moves
	// registered vehicles, so re-add before starting it. Add is idempotent.
	if addErr := e.active.Add(ctx, shipmentID); addErr != nil {
		return nil, opError(FailurePersistence, fmt.Errorf("re-register active simulation: %w", addErr))
	}
	e.ensureClockRunning()
	return updated, nil
}

// ConfirmDelivery completes a run whose vehicle reached the destination.
// The terminal status also clears the registry entry.
func (e *Engine) ConfirmDelivery(ctx context.Context, shipmentID string) (vehicle *models.SimulatedVehicle, err error) {
	defer e.recoverToError(&err)
	updated, err := e.transition(ctx, shipmentID, models.StatusPendingDelivery, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if removeErr := e.active.Remove(ctx, shipmentID); removeErr != nil {
		e.logger.WithField("shipment_id", shipmentID).WithError(removeErr).
			Warn("could not clear registry entry for completed run")
	}
	if e.recorder != nil {
		if flushErr := e.recorder.FlushRun(shipmentID); flushErr != nil {
			e.logger.WithField("shipment_id", shipmentID).WithError(flushErr).
				Warn("trace export failed for completed run")
		}
	}
	return updated, nil
}

func (e *Engine) transition(ctx context.Context, shipmentID string, from, to models.VehicleStatus) (*models.SimulatedVehicle, error) {
	vehicle, err := e.vehicles.Get(ctx, shipmentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, opError(FailureInvalidInput, fmt.Errorf("no simulation for shipment %s", shipmentID))
	}
	if err != nil {
		return nil, opError(FailurePersistence, err)
	}

	if vehicle.Status != from || !models.CanTransition(from, to) {
		return nil, opError(FailureTransitionRejected,
			fmt.Errorf("cannot move shipment %s from %s to %s", shipmentID, vehicle.Status, to))
	}

	updated := *vehicle
	updated.Status = to
	updated.LastUpdateTime = e.now()
	if err := e.vehicles.Put(ctx, &updated); err != nil {
		return nil, opError(FailurePersistence, err)
	}

	e.logger.WithFields(log.Fields{
		"shipment_id": shipmentID,
		"from":        string(from),
		"to":          string(to),
	}).Info("status transition")
	return &updated, nil
}

// Vehicle returns the current state for downstream rendering.
func (e *Engine) Vehicle(ctx context.Context, shipmentID string) (*models.SimulatedVehicle, error) {
	vehicle, err := e.vehicles.Get(ctx, shipmentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, opError(FailureInvalidInput, fmt.Errorf("no simulation for shipment %s", shipmentID))
	}
	if err != nil {
		return nil, opError(FailurePersistence, err)
	}
	return vehicle, nil
}

// Vehicles returns every stored vehicle record.
func (e *Engine) Vehicles(ctx context.Context) ([]*models.SimulatedVehicle, error) {
	vehicles, err := e.vehicles.All(ctx)
	if err != nil {
		return nil, opError(FailurePersistence, err)
	}
	return vehicles, nil
}

// Reset tears a simulation down completely so the next Start rebuilds from
// scratch. This is the explicit rebuild path after a terminal status.
func (e *Engine) Reset(ctx context.Context, shipmentID string) error {
	if removeErr := e.active.Remove(ctx, shipmentID); removeErr != nil {
		return opError(FailurePersistence, removeErr)
	}
	if err := e.vehicles.Delete(ctx, shipmentID); err != nil {
		return opError(FailurePersistence, err)
	}
	e.logger.WithField("shipment_id", shipmentID).Info("simulation reset")
	return nil
}

// SetSpeedMultiplier adjusts how fast simulated time runs for one vehicle.
func (e *Engine) SetSpeedMultiplier(ctx context.Context, shipmentID string, multiplier float64) error {
	if multiplier < 0 {
		return opError(FailureInvalidInput, fmt.Errorf("speed multiplier must be >= 0, got %f", multiplier))
	}
	vehicle, err := e.vehicles.Get(ctx, shipmentID)
	if errors.Is(err, store.ErrNotFound) {
		return opError(FailureInvalidInput, fmt.Errorf("no simulation for shipment %s", shipmentID))
	}
	if err != nil {
		return opError(FailurePersistence, err)
	}

	updated := *vehicle
	updated.SpeedMultiplier = multiplier
	if err := e.vehicles.Put(ctx, &updated); err != nil {
		return opError(FailurePersistence, err)
	}
	return nil
}

// ResumeActive restarts the clock after a process restart when the
// persisted registry still holds a moving vehicle. Safe to call on an
// empty engine.
func (e *Engine) ResumeActive(ctx context.Context) error {
	ids, err := e.active.IDs(ctx)
	if err != nil {
		return opError(FailurePersistence, err)
	}
	for _, id := range ids {
		vehicle, err := e.vehicles.Get(ctx, id)
		if err != nil {
			continue
		}
		if vehicle.Status == models.StatusEnRoute {
			e.logger.WithField("shipment_id", id).Info("resuming persisted simulation")
			e.ensureClockRunning()
			return nil
		}
	}
	return nil
}

// recoverToError converts an unexpected panic in a top-level action into
// the same structured failure shape as every other error.
func (e *Engine) recoverToError(err *error) {
	if r := recover(); r != nil {
		e.logger.WithField("panic", r).Error("unexpected failure in engine operation")
		*err = opError(FailureInternal, fmt.Errorf("unexpected failure: %v", r))
	}
}
