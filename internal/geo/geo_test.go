package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKmIdenticalPoints(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{52.52, 13.405},
		{-33.8688, 151.2093},
		{89.9999, -179.9999},
	}
	for _, p := range points {
		assert.Zero(t, DistanceKm(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceKmSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{52.52, 13.405, 48.1351, 11.582},   // Berlin - Munich
		{40.4168, -3.7038, 41.3874, 2.1686}, // Madrid - Barcelona
		{-1.2921, 36.8219, 59.9139, 10.7522},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-9)
	}
}

func TestDistanceKmKnownDistances(t *testing.T) {
	// Berlin - Munich is roughly 504 km great-circle.
	d := DistanceKm(52.52, 13.405, 48.1351, 11.582)
	assert.InDelta(t, 504, d, 5)

	// One degree of latitude at the equator.
	d = DistanceKm(0, 0, 1, 0)
	assert.InDelta(t, 111.19, d, 0.1)
}

func TestDistanceKmNaNPropagates(t *testing.T) {
	assert.True(t, math.IsNaN(DistanceKm(math.NaN(), 0, 1, 1)))
	assert.True(t, math.IsNaN(DistanceKm(0, 0, math.NaN(), 1)))
}
