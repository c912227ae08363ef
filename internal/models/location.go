package models

import (
	"fmt"
	"math"
)

type Location struct {
	Lat float64 `json:"lat" bson:"lat" parquet:"name=lat,type=DOUBLE"`
	Lon float64 `json:"lon" bson:"lon" parquet:"name=lon,type=DOUBLE"`
}

// FallbackLocation is used as a placeholder position when a vehicle has no
// usable origin (AWAITING_STATUS / ERROR states). It must never be treated
// as real telemetry.
var FallbackLocation = Location{Lat: 0, Lon: 0}

// Valid reports whether the location carries coordinates inside the WGS84
// latitude/longitude ranges.
func (l Location) Valid() bool {
	return !math.IsNaN(l.Lat) && !math.IsNaN(l.Lon) &&
		l.Lat >= -90 && l.Lat <= 90 &&
		l.Lon >= -180 && l.Lon <= 180
}

func (l *Location) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		_, err := fmt.Sscanf(string(v), "POINT(%f %f)", &l.Lon, &l.Lat)
		return err
	case string:
		_, err := fmt.Sscanf(v, "POINT(%f %f)", &l.Lon, &l.Lat)
		return err
	default:
		return fmt.Errorf("unsupported type for Location: %T", value)
	}
}
