package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetdata/trucksim/internal/geo"
	"github.com/fleetdata/trucksim/internal/models"
)

// haltReason is why a tick wants the loop to stop: nothing left moving, or
// the consecutive-failure limit was hit. The idle halt is revocable, the
// failing halt is not.
type haltReason int

const (
	haltNone haltReason = iota
	haltIdle
	haltFailing
)

// ensureClockRunning starts the shared tick loop if it is not already
// alive. One timer drives every vehicle; there are no per-vehicle
// goroutines.
func (e *Engine) ensureClockRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clockStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	e.clockStop = stop
	e.clockDone = done
	e.failingTicks = 0
	go e.runClock(stop, done)
	e.logger.WithField("tick_interval", e.config.TickInterval.String()).Info("simulation clock started")
}

// stopClock halts the tick loop; safe to call when it is not running.
func (e *Engine) stopClock() {
	e.mu.Lock()
	stop := e.clockStop
	done := e.clockDone
	e.clockStop = nil
	e.clockDone = nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// clockStopped marks the loop dead from inside the loop goroutine and
// reports whether the goroutine should exit. With recheck set it first
// looks for en-route vehicles under the lock: a pickup confirmation racing
// with an idle-halt decision takes the same mutex, so it observes either a
// live loop or a fully cleared one, never a loop that is about to exit
// with its state still marked running.
func (e *Engine) clockStopped(stop chan struct{}, recheck bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clockStop != stop {
		// Restarted in between; this goroutine is already replaced.
		return true
	}
	if recheck && e.anyEnRoute() {
		e.failingTicks = 0
		return false
	}
	e.clockStop = nil
	e.clockDone = nil
	return true
}

// anyEnRoute reports whether a registered vehicle is currently moving.
// Called under e.mu.
func (e *Engine) anyEnRoute() bool {
	ctx := context.Background()
	ids, err := e.active.IDs(ctx)
	if err != nil {
		return false
	}
	for _, id := range ids {
		vehicle, err := e.vehicles.Get(ctx, id)
		if err == nil && vehicle.Status == models.StatusEnRoute {
			return true
		}
	}
	return false
}

func (e *Engine) runClock(stop chan struct{}, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			switch e.tick(e.now()) {
			case haltIdle:
				if e.clockStopped(stop, true) {
					return
				}
			case haltFailing:
				e.clockStopped(stop, false)
				return
			}
		}
	}
}

// tick advances every En Route vehicle once and reports whether the loop
// should halt: either no vehicle is left moving (self-stop) or the
// consecutive-failure limit was hit.
func (e *Engine) tick(now time.Time) haltReason {
	ctx := context.Background()

	ids, err := e.active.IDs(ctx)
	if err != nil {
		e.logger.WithError(err).Error("clock could not read active registry")
		return haltNone
	}

	enRoute := 0
	attempted := 0
	failed := 0

	for _, id := range ids {
		vehicle, err := e.vehicles.Get(ctx, id)
		if err != nil {
			// Transient window between registry add and state write.
			continue
		}
		if vehicle.Status != models.StatusEnRoute {
			continue
		}

		attempted++
		if err := e.advanceVehicle(ctx, vehicle, now); err != nil {
			failed++
			e.markVehicleError(ctx, vehicle, err)
			continue
		}
		if vehicle.Status == models.StatusEnRoute {
			enRoute++
		}
	}

	if attempted > 0 && failed == attempted {
		e.failingTicks++
	} else {
		e.failingTicks = 0
	}
	if limit := e.config.ClockFailureTickLimit; limit > 0 && e.failingTicks >= limit {
		e.logger.WithField("failing_ticks", e.failingTicks).
			Error("every advance failed for consecutive ticks, halting clock")
		return haltFailing
	}

	if enRoute == 0 {
		e.logger.Debug("no vehicle en route, clock stopping itself")
		return haltIdle
	}
	return haltNone
}

// advanceVehicle runs one tick of the position algorithm and applies the
// result as a whole-record replacement. A panic in the geodesic math is
// contained here and surfaces as this vehicle's error only.
func (e *Engine) advanceVehicle(ctx context.Context, vehicle *models.SimulatedVehicle, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("position calculation panic: %v", r)
		}
	}()

	delta := now.Sub(vehicle.LastUpdateTime).Seconds()
	if delta <= 0 {
		return nil
	}

	if !vehicle.Route.Usable() {
		return fmt.Errorf("vehicle %s is en route without a usable route", vehicle.ShipmentID)
	}
	length := vehicle.Route.LengthMeters

	distance := vehicle.TraveledDistance + vehicle.AverageSpeed*vehicle.SpeedMultiplier*delta
	distance = clamp(distance, 0, length)

	position, bearing, err := geo.PointAlong(vehicle.Route.Points, distance)
	if err != nil {
		return err
	}

	updated := *vehicle
	updated.TraveledDistance = distance
	updated.Position = position
	updated.Bearing = bearing
	updated.LastUpdateTime = now
	if distance >= length {
		updated.Status = models.StatusPendingDelivery
		e.logger.WithField("shipment_id", vehicle.ShipmentID).Info("vehicle reached destination, pending delivery confirmation")
	}

	if err := e.vehicles.Put(ctx, &updated); err != nil {
		return fmt.Errorf("persist tick: %w", err)
	}
	*vehicle = updated

	if e.sync != nil {
		e.sync.Enqueue(TickEvent{
			ShipmentID:      updated.ShipmentID,
			TimeDelta:       delta,
			SpeedMultiplier: updated.SpeedMultiplier,
			Timestamp:       now.UnixMilli(),
		})
	}
	e.recorder.Record(&updated, now)

	return nil
}

// markVehicleError isolates a calculation failure to the one vehicle.
func (e *Engine) markVehicleError(ctx context.Context, vehicle *models.SimulatedVehicle, cause error) {
	e.logger.WithField("shipment_id", vehicle.ShipmentID).WithError(cause).
		Error("tick failed, marking vehicle errored")

	updated := *vehicle
	updated.Status = models.StatusError
	updated.LastUpdateTime = e.now()
	if err := e.vehicles.Put(ctx, &updated); err != nil {
		e.logger.WithField("shipment_id", vehicle.ShipmentID).WithError(err).
			Error("could not persist error status")
	}
}

// Tick runs a single clock iteration at the given instant. It exists for
// demos and tests that drive time manually instead of the wall clock.
func (e *Engine) Tick(now time.Time) {
	e.tick(now)
}
