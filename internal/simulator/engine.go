// Package simulator contains the vehicle-motion simulation engine: the
// vehicle state factory, the shared tick clock, the control surface and
// the fire-and-forget backend sync. An Engine owns its clock and talks to
// injected stores, so isolated engines can coexist in tests or per tenant.
package simulator

import (
	"sync"
	"time"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/routing"
	"github.com/fleetdata/trucksim/internal/store"
	"github.com/fleetdata/trucksim/internal/trace"
	log "github.com/sirupsen/logrus"
)

type Engine struct {
	config   *models.Config
	logger   *log.Logger
	factory  *VehicleFactory
	vehicles store.VehicleStore
	active   store.ActiveSet
	sync     *SyncDispatcher // nil when sync is disabled
	recorder *trace.Recorder // nil when tracing is disabled

	now func() time.Time

	mu           sync.Mutex
	clockStop    chan struct{}
	clockDone    chan struct{}
	failingTicks int
}

// NewEngine wires an engine from explicit collaborators. Tests substitute
// fakes here; production wiring lives in NewEngineFromConfig.
func NewEngine(
	config *models.Config,
	logger *log.Logger,
	resolver routing.Resolver,
	vehicles store.VehicleStore,
	active store.ActiveSet,
	dispatcher *SyncDispatcher,
	recorder *trace.Recorder,
) *Engine {
	return &Engine{
		config:   config,
		logger:   logger,
		factory:  NewVehicleFactory(resolver, config, logger),
		vehicles: vehicles,
		active:   active,
		sync:     dispatcher,
		recorder: recorder,
		now:      time.Now,
	}
}

// NewEngineFromConfig builds the default production engine: config-driven
// resolver chain, in-memory stores, and the configured sync backend.
// Callers needing postgres or mongo stores construct those and use
// NewEngine directly.
func NewEngineFromConfig(config *models.Config, logger *log.Logger) (*Engine, error) {
	resolver := routing.NewFromConfig(config, logger)

	backend, err := NewSyncBackend(config)
	if err != nil {
		return nil, err
	}
	var dispatcher *SyncDispatcher
	if backend != nil {
		dispatcher = NewSyncDispatcher(backend, config.SyncQueueSize, logger)
	}

	var recorder *trace.Recorder
	if config.TraceEnabled {
		recorder, err = trace.NewRecorder(config, logger)
		if err != nil {
			return nil, err
		}
	}

	return NewEngine(
		config, logger, resolver,
		store.NewMemoryVehicleStore(), store.NewMemoryActiveSet(),
		dispatcher, recorder,
	), nil
}

// ClockRunning reports whether the shared tick loop is alive.
func (e *Engine) ClockRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clockStop != nil
}

// Close stops the clock, the sync dispatcher and flushes any traces.
func (e *Engine) Close() error {
	e.stopClock()
	var firstErr error
	if e.sync != nil {
		if err := e.sync.Close(); err != nil {
			firstErr = err
		}
	}
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
