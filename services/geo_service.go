package services

import (
	"context"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"poimap-server/cache"
	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
	"poimap-server/utils/geo"
)

const (
	defaultNearbyRadius = 3000.0
	maxNearbyRadius     = 50000.0
)

// GeoIndexer is the Redis geo set in production (cache.GeoIndex).
type GeoIndexer interface {
	Upsert(ctx context.Context, p models.Point) error
	Remove(ctx context.Context, id string) error
	// Nearby returns hits closest first; limit <= 0 returns every hit in the radius.
	Nearby(ctx context.Context, lat, lon, radius float64, limit int) ([]cache.Hit, error)
	Rebuild(ctx context.Context, points []models.Point) error
}

type NearbyPoint struct {
	models.Point
	Distance float64 `json:"distance"`
}

// NearbyRadius is the radius Nearby actually searches for a requested one.
func NearbyRadius(radius float64) float64 {
	if radius <= 0 {
		return defaultNearbyRadius
	}
	if radius > maxNearbyRadius {
		return maxNearbyRadius
	}
	return radius
}

// Nearby returns the visible points within radius meters, closest first.
func (s *PointService) Nearby(ctx context.Context, lat, lon, radius float64, category string) ([]NearbyPoint, error) {
	if !geo.ValidLatLon(lat, lon) {
		return nil, errors.ErrInvalidInput.WithDetails("invalid coordinates")
	}
	radius = NearbyRadius(radius)

	if s.index != nil {
		results, err := s.nearbyFromIndex(ctx, lat, lon, radius, category)
		if err == nil {
			return results, nil
		}
		s.logger.Warn("geo index lookup failed, scanning store", zap.Error(err))
	}
	return s.nearbyFromStore(ctx, lat, lon, radius, category)
}

// nearbyFromIndex takes every hit in the radius uncapped. The index holds points
// of every status; visibility is filtered here.
func (s *PointService) nearbyFromIndex(ctx context.Context, lat, lon, radius float64, category string) ([]NearbyPoint, error) {
	hits, err := s.index.Nearby(ctx, lat, lon, radius, 0)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []NearbyPoint{}, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	points, err := s.store.FindPoints(ctx, store.PointQuery{IDs: ids, Deleted: store.Live()})
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	byID := make(map[string]models.Point, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}

	pr := PrincipalFromContext(ctx)
	results := []NearbyPoint{}
	for _, h := range hits {
		p, ok := byID[h.ID]
		if !ok || !Visible(pr, p, false) || (category != "" && p.Category != category) {
			continue
		}
		results = append(results, NearbyPoint{Point: p, Distance: h.Distance})
	}
	return results, nil
}

func (s *PointService) nearbyFromStore(ctx context.Context, lat, lon, radius float64, category string) ([]NearbyPoint, error) {
	q := store.PointQuery{Deleted: store.Live()}
	if category != "" {
		q.Categories = []string{category}
	}
	points, err := s.store.FindPoints(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	pr := PrincipalFromContext(ctx)
	results := []NearbyPoint{}
	for _, p := range points {
		if !Visible(pr, p, false) {
			continue
		}
		d := geo.DistanceMeters(lat, lon, p.Lat(), p.Lon())
		if d <= radius {
			results = append(results, NearbyPoint{Point: p, Distance: d})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	return results, nil
}

// SyncIndex reloads every live point into the geo index.
func (s *PointService) SyncIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	points, err := s.store.FindPoints(ctx, store.PointQuery{Deleted: store.Live()})
	if err != nil {
		return err
	}
	if err := s.index.Rebuild(ctx, points); err != nil {
		return err
	}
	s.logger.Info("geo index rebuilt", zap.Int("points", len(points)))
	return nil
}

func (s *PointService) indexUpsert(ctx context.Context, p models.Point) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(ctx, p); err != nil {
		s.logger.Warn("failed to index point", zap.String("id", p.ID), zap.Error(err))
	}
}

func (s *PointService) indexRemove(ctx context.Context, id string) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(ctx, id); err != nil {
		s.logger.Warn("failed to remove point from index", zap.String("id", id), zap.Error(err))
	}
}
