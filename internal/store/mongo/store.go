// Package mongo backs the vehicle store and active-simulation registry
// with MongoDB collections keyed by shipment id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/fleetdata/trucksim/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

type VehicleStore struct {
	collection *mongo.Collection
}

func NewVehicleStore(db *mongo.Database) *VehicleStore {
	return &VehicleStore{collection: db.Collection("simulated_vehicles")}
}

func (s *VehicleStore) Get(ctx context.Context, shipmentID string) (*models.SimulatedVehicle, error) {
	var vehicle models.SimulatedVehicle
	err := s.collection.FindOne(ctx, bson.M{"shipment_id": shipmentID}).Decode(&vehicle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (s *VehicleStore) Put(ctx context.Context, vehicle *models.SimulatedVehicle) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"shipment_id": vehicle.ShipmentID}, vehicle, opts)
	return err
}

func (s *VehicleStore) Delete(ctx context.Context, shipmentID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"shipment_id": shipmentID})
	return err
}

func (s *VehicleStore) All(ctx context.Context) ([]*models.SimulatedVehicle, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vehicles []*models.SimulatedVehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

type ActiveSet struct {
	collection *mongo.Collection
}

func NewActiveSet(db *mongo.Database) *ActiveSet {
	return &ActiveSet{collection: db.Collection("active_simulations")}
}

func (s *ActiveSet) Add(ctx context.Context, shipmentID string) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"shipment_id": shipmentID},
		bson.M{"$set": bson.M{"shipment_id": shipmentID}},
		opts)
	return err
}

func (s *ActiveSet) Remove(ctx context.Context, shipmentID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"shipment_id": shipmentID})
	return err
}

func (s *ActiveSet) Contains(ctx context.Context, shipmentID string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"shipment_id": shipmentID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *ActiveSet) IDs(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ShipmentID string `bson:"shipment_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ShipmentID)
	}
	return ids, nil
}
