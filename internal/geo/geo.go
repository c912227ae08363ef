// Package geo holds the geodesic math the simulation engine runs over
// resolved route polylines: great-circle distances, segment bearings and
// point-at-distance interpolation.
package geo

import (
	"errors"
	"math"

	"github.com/fleetdata/trucksim/internal/models"
)

const earthRadiusMeters = 6371000.0

var ErrEmptyPath = errors.New("geo: path needs at least two points")

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Distance returns the haversine great-circle distance between two
// locations in meters.
func Distance(a, b models.Location) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dlat := degreesToRadians(b.Lat - a.Lat)
	dlon := degreesToRadians(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalised to [0, 360).
func Bearing(a, b models.Location) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dlon := degreesToRadians(b.Lon - a.Lon)

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)
	deg := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(deg+360, 360)
}

// PathLength sums the segment distances of a polyline in meters.
func PathLength(points []models.Location) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

func lerp(a, b models.Location, t float64) models.Location {
	return models.Location{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// PointAlong walks the polyline and returns the interpolated position at
// the given distance in meters, together with the bearing of the segment
// containing it. Distances outside [0, length] clamp to the endpoints,
// keeping the endpoint segment's bearing.
func PointAlong(points []models.Location, distance float64) (models.Location, float64, error) {
	if len(points) < 2 {
		return models.Location{}, 0, ErrEmptyPath
	}
	if distance <= 0 {
		return points[0], Bearing(points[0], points[1]), nil
	}

	remaining := distance
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		segLen := Distance(a, b)
		if segLen <= 0 {
			continue
		}
		if remaining <= segLen {
			return lerp(a, b, remaining/segLen), Bearing(a, b), nil
		}
		remaining -= segLen
	}

	// Past the end of the path: clamp to the destination.
	last := len(points) - 1
	return points[last], Bearing(points[last-1], points[last]), nil
}

// FinalBearing returns the heading of the last segment of the polyline.
func FinalBearing(points []models.Location) (float64, error) {
	if len(points) < 2 {
		return 0, ErrEmptyPath
	}
	return Bearing(points[len(points)-2], points[len(points)-1]), nil
}
