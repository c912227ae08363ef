// Package postgres backs the vehicle store and active-simulation registry
// with PostgreSQL. Positions use a PostGIS geography point; the route
// polyline travels as JSONB since the engine only ever reads it whole.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VehicleStore struct {
	pool *pgxpool.Pool
}

func NewVehicleStore(pool *pgxpool.Pool) *VehicleStore {
	return &VehicleStore{pool: pool}
}

func (s *VehicleStore) Put(ctx context.Context, vehicle *models.SimulatedVehicle) error {
	routeJSON, err := json.Marshal(vehicle.Route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}

	query := `
        INSERT INTO simulated_vehicles (
            shipment_id, status, origin, destination, route,
            traveled_distance, position, bearing,
            average_speed, speed_multiplier, last_update_time,
            driver_name, truck_label
        ) VALUES (
            $1, $2,
            ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
            ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
            $7, $8,
            ST_SetSRID(ST_MakePoint($9, $10), 4326)::geography,
            $11, $12, $13, $14, $15, $16
        )
        ON CONFLICT (shipment_id) DO UPDATE SET
            status = EXCLUDED.status,
            origin = EXCLUDED.origin,
            destination = EXCLUDED.destination,
            route = EXCLUDED.route,
            traveled_distance = EXCLUDED.traveled_distance,
            position = EXCLUDED.position,
            bearing = EXCLUDED.bearing,
            average_speed = EXCLUDED.average_speed,
            speed_multiplier = EXCLUDED.speed_multiplier,
            last_update_time = EXCLUDED.last_update_time,
            driver_name = EXCLUDED.driver_name,
            truck_label = EXCLUDED.truck_label,
            updated_at = CURRENT_TIMESTAMP
    `

	_, err = s.pool.Exec(ctx, query,
		vehicle.ShipmentID,
		string(vehicle.Status),
		vehicle.Origin.Lon, vehicle.Origin.Lat,
		vehicle.Destination.Lon, vehicle.Destination.Lat,
		routeJSON,
		vehicle.TraveledDistance,
		vehicle.Position.Lon, vehicle.Position.Lat,
		vehicle.Bearing,
		vehicle.AverageSpeed,
		vehicle.SpeedMultiplier,
		vehicle.LastUpdateTime,
		vehicle.DriverName,
		vehicle.TruckLabel,
	)
	return err
}

const vehicleColumns = `
        shipment_id, status,
        ST_AsText(origin::geometry), ST_AsText(destination::geometry),
        route, traveled_distance,
        ST_AsText(position::geometry),
        bearing, average_speed, speed_multiplier, last_update_time,
        driver_name, truck_label
`

// scanVehicle reads one row; the geography columns come back as WKT
// "POINT(lon lat)" text and land in Location via its sql.Scanner.
func scanVehicle(row pgx.Row) (*models.SimulatedVehicle, error) {
	vehicle := &models.SimulatedVehicle{}
	var status string
	var routeJSON []byte
	err := row.Scan(
		&vehicle.ShipmentID,
		&status,
		&vehicle.Origin,
		&vehicle.Destination,
		&routeJSON,
		&vehicle.TraveledDistance,
		&vehicle.Position,
		&vehicle.Bearing,
		&vehicle.AverageSpeed,
		&vehicle.SpeedMultiplier,
		&vehicle.LastUpdateTime,
		&vehicle.DriverName,
		&vehicle.TruckLabel,
	)
	if err != nil {
		return nil, err
	}
	vehicle.Status = models.VehicleStatus(status)
	if len(routeJSON) > 0 && string(routeJSON) != "null" {
		var route models.Route
		if err := json.Unmarshal(routeJSON, &route); err != nil {
			return nil, fmt.Errorf("unmarshal route: %w", err)
		}
		vehicle.Route = &route
	}
	return vehicle, nil
}

func (s *VehicleStore) Get(ctx context.Context, shipmentID string) (*models.SimulatedVehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM simulated_vehicles WHERE shipment_id = $1`
	vehicle, err := scanVehicle(s.pool.QueryRow(ctx, query, shipmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return vehicle, err
}

func (s *VehicleStore) Delete(ctx context.Context, shipmentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM simulated_vehicles WHERE shipment_id = $1`, shipmentID)
	return err
}

func (s *VehicleStore) All(ctx context.Context) ([]*models.SimulatedVehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM simulated_vehicles`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*models.SimulatedVehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, rows.Err()
}

// ActiveSet stores the running shipment ids in their own table so registry
// membership survives restarts alongside vehicle state.
type ActiveSet struct {
	pool *pgxpool.Pool
}

func NewActiveSet(pool *pgxpool.Pool) *ActiveSet {
	return &ActiveSet{pool: pool}
}

func (s *ActiveSet) Add(ctx context.Context, shipmentID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO active_simulations (shipment_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		shipmentID)
	return err
}

func (s *ActiveSet) Remove(ctx context.Context, shipmentID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM active_simulations WHERE shipment_id = $1`, shipmentID)
	return err
}

func (s *ActiveSet) Contains(ctx context.Context, shipmentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM active_simulations WHERE shipment_id = $1)`,
		shipmentID).Scan(&exists)
	return exists, err
}

func (s *ActiveSet) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT shipment_id FROM active_simulations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
