package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"poimap-server/models"
)

const geoKey = "pois:geo"

// GeoIndex mirrors every live point into a Redis geo set keyed by point id.
type GeoIndex struct {
	client *redis.Client
	key    string
}

func NewGeoIndex(client *redis.Client) *GeoIndex {
	return &GeoIndex{client: client, key: geoKey}
}

// Hit is one geo search result, distance in meters.
type Hit struct {
	ID       string
	Distance float64
}

func (g *GeoIndex) Upsert(ctx context.Context, p models.Point) error {
	return g.client.GeoAdd(ctx, g.key, &redis.GeoLocation{
		Name:      p.ID,
		Longitude: p.Lon(),
		Latitude:  p.Lat(),
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, id string) error {
	return g.client.ZRem(ctx, g.key, id).Err()
}

// Nearby returns ids within radius meters, closest first. A limit <= 0 sends no COUNT.
func (g *GeoIndex) Nearby(ctx context.Context, lat, lon, radius float64, limit int) ([]Hit, error) {
	locs, err := g.client.GeoSearchLocation(ctx, g.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radius,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(locs))
	for _, loc := range locs {
		hits = append(hits, Hit{ID: loc.Name, Distance: loc.Dist})
	}
	return hits, nil
}

// Rebuild replaces the whole index with points.
func (g *GeoIndex) Rebuild(ctx context.Context, points []models.Point) error {
	pipe := g.client.TxPipeline()
	pipe.Del(ctx, g.key)
	if len(points) > 0 {
		locs := make([]*redis.GeoLocation, 0, len(points))
		for _, p := range points {
			locs = append(locs, &redis.GeoLocation{Name: p.ID, Longitude: p.Lon(), Latitude: p.Lat()})
		}
		pipe.GeoAdd(ctx, g.key, locs...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
