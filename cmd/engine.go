package cmd

import (
	"context"
	"fmt"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/routing"
	"github.com/fleetdata/trucksim/internal/simulator"
	"github.com/fleetdata/trucksim/internal/store"
	mongostore "github.com/fleetdata/trucksim/internal/store/mongo"
	pgstore "github.com/fleetdata/trucksim/internal/store/postgres"
	"github.com/fleetdata/trucksim/internal/trace"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// buildEngine assembles the engine with the store driver, sync backend and
// trace recorder the configuration names.
func buildEngine(ctx context.Context, cfg *models.Config, logger *log.Logger) (*simulator.Engine, error) {
	vehicles, active, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := simulator.NewSyncBackend(cfg)
	if err != nil {
		return nil, err
	}
	var dispatcher *simulator.SyncDispatcher
	if backend != nil {
		dispatcher = simulator.NewSyncDispatcher(backend, cfg.SyncQueueSize, logger)
	}

	var recorder *trace.Recorder
	if cfg.TraceEnabled {
		recorder, err = trace.NewRecorder(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	resolver := routing.NewFromConfig(cfg, logger)
	return simulator.NewEngine(cfg, logger, resolver, vehicles, active, dispatcher, recorder), nil
}

func buildStores(ctx context.Context, cfg *models.Config) (store.VehicleStore, store.ActiveSet, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return store.NewMemoryVehicleStore(), store.NewMemoryActiveSet(), nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return pgstore.NewVehicleStore(pool), pgstore.NewActiveSet(pool), nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo store: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		return mongostore.NewVehicleStore(db), mongostore.NewActiveSet(db), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
