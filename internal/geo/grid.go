// Package geo holds the coordinate math shared by the ranker and the
// privacy grid. Exact coordinates never leave the server: other users only
// ever see a cell center and a rounded distance.
package geo

import (
	"fmt"
	"math"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

const (
	earthRadiusM = 6371000.0

	// cellSizeDeg is ~500m expressed in degrees of latitude.
	cellSizeDeg = 500.0 / 111000.0

	distanceStepM = 100.0
)

// Cell is the quantized stand-in for an exact coordinate.
type Cell struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	ID  string  `json:"id"`
}

// Quantize maps a point to the center of its ~500m grid cell. The longitude
// cell width is latitude-corrected so cells stay approximately square in
// meters. Invalid coordinates are rejected, never clamped.
//
// The width is derived from the cell-center latitude, not the raw input, so
// every point inside a cell agrees on the width and re-quantizing a cell
// center lands back in the same cell. Centers of edge cells poke past the
// coordinate range, so the returned center is clamped into it; the clamped
// value still quantizes to the same index.
func Quantize(lat, lng float64) (Cell, error) {
	if err := Validate(lat, lng); err != nil {
		return Cell{}, err
	}

	latIdx := math.Floor(lat / cellSizeDeg)
	centerLat := clampCoord((latIdx+0.5)*cellSizeDeg, 90)

	lngCell := cellSizeDeg / math.Cos(centerLat*math.Pi/180)
	lngIdx := math.Floor(lng / lngCell)

	return Cell{
		Lat: centerLat,
		Lng: clampCoord((lngIdx+0.5)*lngCell, 180),
		ID:  fmt.Sprintf("%d:%d", int64(latIdx), int64(lngIdx)),
	}, nil
}

func clampCoord(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// RoundDistance rounds a distance to the nearest 100m before it reaches
// another user.
func RoundDistance(meters float64) float64 {
	return math.Round(meters/distanceStepM) * distanceStepM
}

// Validate rejects NaN and out-of-range coordinates.
func Validate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: coordinates must be finite", domain.ErrInvalidInput)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude out of range", domain.ErrInvalidInput)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude out of range", domain.ErrInvalidInput)
	}
	return nil
}

// Distance returns the great-circle distance between two points in meters.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLng := (lng2 - lng1) * (math.Pi / 180.0)
	lat1Rad := lat1 * (math.Pi / 180.0)
	lat2Rad := lat2 * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// BoundingBox returns the lat/lng deltas for a cheap prefilter around a
// point: rows outside the box cannot be within radiusM.
func BoundingBox(lat float64, radiusM float64) (dLat, dLng float64) {
	dLat = radiusM / 111000.0
	dLng = radiusM / (111000.0 * math.Cos(lat*math.Pi/180.0))
	return dLat, dLng
}
