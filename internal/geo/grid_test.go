package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeIdempotent(t *testing.T) {
	points := []struct {
		name     string
		lat, lng float64
	}{
		{"warsaw", 52.2297, 21.0122},
		{"equator", 0.001, 0.001},
		{"southern", -33.8688, 151.2093},
		{"high latitude", 69.6496, 18.9553},
		{"negative lng", 40.7128, -74.0060},
	}

	for _, p := range points {
		t.Run(p.name, func(t *testing.T) {
			first, err := Quantize(p.lat, p.lng)
			require.NoError(t, err)

			second, err := Quantize(first.Lat, first.Lng)
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)
			assert.InDelta(t, first.Lat, second.Lat, 1e-9)
			assert.InDelta(t, first.Lng, second.Lng, 1e-9)
		})
	}
}

func TestQuantizeIdempotentAtHighLatitudes(t *testing.T) {
	// Longitude cell width grows quickly with latitude, so the width must
	// follow the cell-center latitude or re-quantizing a center drifts
	// into a neighboring cell.
	for lat := 60.0; lat <= 86.0; lat += 0.7 {
		for lng := 100.0; lng <= 175.0; lng += 2.3 {
			first, err := Quantize(lat, lng)
			require.NoError(t, err)

			second, err := Quantize(first.Lat, first.Lng)
			require.NoErrorf(t, err, "center of (%f, %f) rejected", lat, lng)
			require.Equalf(t, first.ID, second.ID, "cell flip at (%f, %f)", lat, lng)
		}
	}
}

func TestQuantizeEdgeCellCentersStayInRange(t *testing.T) {
	// Centers of the outermost cells would poke past the coordinate range;
	// they are clamped and the clamped point still maps to the same cell.
	points := []struct {
		name     string
		lat, lng float64
	}{
		{"date line", 52.2, 180},
		{"date line west", 52.2, -180},
		{"north pole", 90, 21},
		{"south pole", -90, -74},
		{"pole corner", 90, 180},
	}
	for _, p := range points {
		t.Run(p.name, func(t *testing.T) {
			first, err := Quantize(p.lat, p.lng)
			require.NoError(t, err)
			require.NoError(t, Validate(first.Lat, first.Lng))

			second, err := Quantize(first.Lat, first.Lng)
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)
		})
	}
}

func TestQuantizeNearbyPointsShareCell(t *testing.T) {
	a, err := Quantize(52.20000, 21.00000)
	require.NoError(t, err)
	b, err := Quantize(52.20010, 21.00010)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestQuantizeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name     string
		lat, lng float64
	}{
		{"nan lat", math.NaN(), 0},
		{"nan lng", 0, math.NaN()},
		{"inf", math.Inf(1), 0},
		{"lat too big", 90.5, 0},
		{"lat too small", -91, 0},
		{"lng too big", 0, 181},
		{"lng too small", 0, -180.01},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Quantize(c.lat, c.lng)
			assert.Error(t, err)
		})
	}
}

func TestRoundDistance(t *testing.T) {
	assert.Equal(t, 0.0, RoundDistance(49))
	assert.Equal(t, 100.0, RoundDistance(50))
	assert.Equal(t, 100.0, RoundDistance(149))
	assert.Equal(t, 1300.0, RoundDistance(1250))
}

func TestDistance(t *testing.T) {
	// ~60m apart per the wave-to-chat scenario.
	d := Distance(52.20, 21.00, 52.2005, 21.0007)
	assert.InDelta(t, 73, d, 20)

	assert.InDelta(t, 0, Distance(52.2, 21.0, 52.2, 21.0), 1e-6)

	// Warsaw to Krakow, roughly 250km.
	d = Distance(52.2297, 21.0122, 50.0647, 19.9450)
	assert.InDelta(t, 252000, d, 5000)
}

func TestBoundingBoxWidensWithLatitude(t *testing.T) {
	_, lngEquator := BoundingBox(0, 1000)
	_, lngNorth := BoundingBox(60, 1000)
	assert.Greater(t, lngNorth, lngEquator)
}
