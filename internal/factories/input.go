// Package factories generates plausible demo inputs for the simulation
// engine when no upstream shipment provider is wired in.
package factories

import (
	"math/rand"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
)

var fake = faker.New()

// Depot pairs with enough separation to make demo routes visible on a map.
var demoCorridors = [][2]models.Location{
	{{Lat: 3.1493, Lon: 101.6953}, {Lat: 1.4927, Lon: 103.7414}},   // Kuala Lumpur -> Johor
	{{Lat: 52.5200, Lon: 13.4050}, {Lat: 53.5511, Lon: 9.9937}},    // Berlin -> Hamburg
	{{Lat: 51.5074, Lon: -0.1278}, {Lat: 53.4808, Lon: -2.2426}},   // London -> Manchester
	{{Lat: 40.7128, Lon: -74.0060}, {Lat: 39.9526, Lon: -75.1652}}, // New York -> Philadelphia
	{{Lat: 48.8566, Lon: 2.3522}, {Lat: 45.7640, Lon: 4.8357}},     // Paris -> Lyon
}

var demoStatuses = []string{"PLANNED", "BOOKED", "IN_TRANSIT", "IN_TRANSIT", "AT_DROPOFF"}

type InputFactory struct{}

// CreateInput builds one demo SimulationInput between a random corridor's
// endpoints, with jittered depots so two shipments never share an exact
// coordinate pair.
func (f *InputFactory) CreateInput(config *models.Config) *models.SimulationInput {
	corridor := demoCorridors[rand.Intn(len(demoCorridors))]
	origin := jitter(corridor[0], 0.004)
	destination := jitter(corridor[1], 0.004)

	return &models.SimulationInput{
		ShipmentID:      "SHP-" + cuid.Slug(),
		Origin:          &origin,
		Destination:     &destination,
		ExternalStatus:  demoStatuses[rand.Intn(len(demoStatuses))],
		SpeedMultiplier: config.SpeedMultiplier,
		DriverName:      fake.Person().Name(),
		TruckLabel:      fake.RandomStringElement([]string{"DAF XF", "Volvo FH16", "Scania R450", "MAN TGX"}),
	}
}

func jitter(base models.Location, degrees float64) models.Location {
	return models.Location{
		Lat: base.Lat + (rand.Float64()*2-1)*degrees,
		Lon: base.Lon + (rand.Float64()*2-1)*degrees,
	}
}
