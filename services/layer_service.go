package services

import (
	"context"
	"net/http"

	"poimap-server/models"
	"poimap-server/utils/errors"
	"poimap-server/utils/geo"
)

const (
	UncategorizedID    = "uncategorized"
	uncategorizedColor = "#9e9e9e"
)

// Layer is one category group on the map.
type Layer struct {
	ID       string                   `json:"id"`
	Name     string                   `json:"name"`
	Color    string                   `json:"color"`
	Icon     string                   `json:"icon,omitempty"`
	Enabled  bool                     `json:"enabled"`
	Count    int                      `json:"count"`
	Features models.FeatureCollection `json:"features"`
}

type LayerFilter struct {
	// Enabled lists the categories to draw; empty means all of them.
	Enabled  []string
	Statuses []models.PointStatus
	Query    string
	BBox     *geo.BBox
}

// Layers groups the points visible to the caller into one layer per category.
// Every visible point that passes the filter lands in exactly one enabled layer,
// and disabled layers stay listed without features.
func (s *PointService) Layers(ctx context.Context, f LayerFilter) ([]Layer, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load categories", http.StatusInternalServerError)
	}
	points, err := s.visiblePoints(ctx, ListFilter{Statuses: f.Statuses, Query: f.Query, BBox: f.BBox})
	if err != nil {
		return nil, err
	}

	enabled := func(id string) bool {
		if len(f.Enabled) == 0 {
			return true
		}
		for _, e := range f.Enabled {
			if e == id {
				return true
			}
		}
		return false
	}

	known := make(map[string]int, len(categories))
	layers := make([]Layer, 0, len(categories)+1)
	for _, c := range categories {
		known[c.ID] = len(layers)
		layers = append(layers, newLayer(c.ID, c.Name, c.Color, c.Icon, enabled(c.ID)))
	}

	orphanIdx := -1
	if idx, ok := known[UncategorizedID]; ok {
		orphanIdx = idx
	}
	for _, p := range points {
		idx, ok := known[p.Category]
		if !ok {
			if orphanIdx < 0 {
				orphanIdx = len(layers)
				layers = append(layers, newLayer(UncategorizedID, "Uncategorized", uncategorizedColor, "", enabled(UncategorizedID)))
			}
			idx = orphanIdx
		}
		if !layers[idx].Enabled {
			continue
		}
		layers[idx].Features.Features = append(layers[idx].Features.Features, models.PointFeature(p))
		layers[idx].Count++
	}
	return layers, nil
}

func newLayer(id, name, color, icon string, enabled bool) Layer {
	return Layer{
		ID:       id,
		Name:     name,
		Color:    color,
		Icon:     icon,
		Enabled:  enabled,
		Features: models.FeatureCollection{Type: "FeatureCollection", Features: []models.Feature{}},
	}
}
