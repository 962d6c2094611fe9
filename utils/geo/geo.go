package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters is the haversine great-circle distance between two lat/lon pairs.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// ValidLatLon checks the global coordinate ranges.
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// BBox is an axis-aligned lat/lon box. Boxes crossing the antimeridian are not supported.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// World accepts every valid coordinate.
var World = BBox{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}

func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// ParseBBox reads "minLat,minLon,maxLat,maxLon".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 comma separated numbers, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	b := BBox{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
	if !ValidLatLon(b.MinLat, b.MinLon) || !ValidLatLon(b.MaxLat, b.MaxLon) {
		return BBox{}, fmt.Errorf("bbox %q out of range", s)
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return BBox{}, fmt.Errorf("bbox %q has min greater than max", s)
	}
	return b, nil
}
