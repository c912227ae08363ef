package geo

import (
	"testing"

	"github.com/fleetdata/trucksim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	kualaLumpur = models.Location{Lat: 3.1493, Lon: 101.6953}
	singapore   = models.Location{Lat: 1.4927, Lon: 103.7414}
)

func TestDistance(t *testing.T) {
	d := Distance(kualaLumpur, singapore)
	// KL to the Johor/Singapore area is roughly 290 km as the crow flies.
	assert.InDelta(t, 290000, d, 15000)

	assert.Zero(t, Distance(kualaLumpur, kualaLumpur))
}

func TestBearing(t *testing.T) {
	north := Bearing(models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 1, Lon: 0})
	assert.InDelta(t, 0, north, 0.01)

	east := Bearing(models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 0, Lon: 1})
	assert.InDelta(t, 90, east, 0.01)

	south := Bearing(models.Location{Lat: 1, Lon: 0}, models.Location{Lat: 0, Lon: 0})
	assert.InDelta(t, 180, south, 0.01)
}

func TestPathLength(t *testing.T) {
	points := []models.Location{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.5},
		{Lat: 0, Lon: 1},
	}
	direct := Distance(points[0], points[2])
	assert.InDelta(t, direct, PathLength(points), direct*0.001)

	assert.Zero(t, PathLength(nil))
	assert.Zero(t, PathLength(points[:1]))
}

func TestPointAlong(t *testing.T) {
	points := []models.Location{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
	}
	length := PathLength(points)

	t.Run("start", func(t *testing.T) {
		pos, bearing, err := PointAlong(points, 0)
		require.NoError(t, err)
		assert.Equal(t, points[0], pos)
		assert.InDelta(t, 90, bearing, 0.01)
	})

	t.Run("negative clamps to start", func(t *testing.T) {
		pos, _, err := PointAlong(points, -100)
		require.NoError(t, err)
		assert.Equal(t, points[0], pos)
	})

	t.Run("midway through first segment", func(t *testing.T) {
		seg := Distance(points[0], points[1])
		pos, bearing, err := PointAlong(points, seg/2)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, pos.Lon, 0.001)
		assert.InDelta(t, 0, pos.Lat, 0.001)
		assert.InDelta(t, 90, bearing, 0.01)
	})

	t.Run("second segment bearing", func(t *testing.T) {
		seg := Distance(points[0], points[1])
		_, bearing, err := PointAlong(points, seg+1000)
		require.NoError(t, err)
		assert.InDelta(t, 0, bearing, 0.5)
	})

	t.Run("past the end clamps to destination", func(t *testing.T) {
		pos, _, err := PointAlong(points, length*2)
		require.NoError(t, err)
		assert.Equal(t, points[2], pos)
	})

	t.Run("degenerate path", func(t *testing.T) {
		_, _, err := PointAlong(points[:1], 10)
		assert.ErrorIs(t, err, ErrEmptyPath)
	})
}

func TestFinalBearing(t *testing.T) {
	points := []models.Location{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
	}
	bearing, err := FinalBearing(points)
	require.NoError(t, err)
	assert.InDelta(t, 0, bearing, 0.5)

	_, err = FinalBearing(nil)
	assert.ErrorIs(t, err, ErrEmptyPath)
}
