package models

// GeoPoint is a GeoJSON point; Coordinates are [lon, lat].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

func (g GeoPoint) Lon() float64 {
	if len(g.Coordinates) < 2 {
		return 0
	}
	return g.Coordinates[0]
}

func (g GeoPoint) Lat() float64 {
	if len(g.Coordinates) < 2 {
		return 0
	}
	return g.Coordinates[1]
}

// Feature and FeatureCollection are the GeoJSON shapes served to the map widget.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   GeoPoint       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

func PointFeature(p Point) Feature {
	return Feature{
		Type:     "Feature",
		ID:       p.ID,
		Geometry: p.Location,
		Properties: map[string]any{
			"name":        p.Name,
			"category":    p.Category,
			"description": p.Description,
			"address":     p.Address,
			"phone":       p.Phone,
			"website":     p.Website,
			"tags":        p.Tags,
			"status":      p.Status,
			"hidden":      p.Hidden,
		},
	}
}
