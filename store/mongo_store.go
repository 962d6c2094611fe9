package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poimap-server/models"
)

type MongoStore struct {
	client     *mongo.Client
	points     *mongo.Collection
	categories *mongo.Collection
	users      *mongo.Collection
}

// NewMongoStore connects, pings and ensures the indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		points:     db.Collection("pois"),
		categories: db.Collection("categories"),
		users:      db.Collection("users"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "public_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	_, err = s.points.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "name_key", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "deleted", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create point indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) InsertPoint(ctx context.Context, p models.Point) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	_, err := s.points.InsertOne(ctx, p)
	return translateMongoError(err)
}

func (s *MongoStore) GetPoint(ctx context.Context, id string) (models.Point, error) {
	var p models.Point
	if err := s.points.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Point{}, translateMongoError(err)
	}
	return p, nil
}

func (s *MongoStore) UpdatePoint(ctx context.Context, p models.Point) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	res, err := s.points.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeletePoint(ctx context.Context, id string) error {
	res, err := s.points.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func mongoPointFilter(q PointQuery) bson.M {
	filter := bson.M{}
	if len(q.IDs) > 0 {
		filter["_id"] = bson.M{"$in": q.IDs}
	}
	if len(q.Categories) > 0 {
		filter["category"] = bson.M{"$in": q.Categories}
	}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if q.Deleted != nil {
		filter["deleted"] = *q.Deleted
	}
	if q.NameKey != "" {
		filter["name_key"] = q.NameKey
	}
	if q.CreatedBy != "" {
		filter["created_by"] = q.CreatedBy
	}
	if q.BBox != nil {
		filter["location"] = bson.M{"$geoWithin": bson.M{"$box": bson.A{
			bson.A{q.BBox.MinLon, q.BBox.MinLat},
			bson.A{q.BBox.MaxLon, q.BBox.MaxLat},
		}}}
	}
	return filter
}

func (s *MongoStore) FindPoints(ctx context.Context, q PointQuery) ([]models.Point, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.points.Find(ctx, mongoPointFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	points := []models.Point{}
	if err := cursor.All(ctx, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *MongoStore) InsertCategory(ctx context.Context, c models.Category) error {
	_, err := s.categories.InsertOne(ctx, c)
	return translateMongoError(err)
}

func (s *MongoStore) GetCategory(ctx context.Context, id string) (models.Category, error) {
	var c models.Category
	if err := s.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return models.Category{}, translateMongoError(err)
	}
	return c, nil
}

func (s *MongoStore) UpdateCategory(ctx context.Context, c models.Category) error {
	res, err := s.categories.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{
		"name":  c.Name,
		"color": c.Color,
		"icon":  c.Icon,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	cursor, err := s.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := []models.Category{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) InsertUser(ctx context.Context, u models.User) error {
	u.ID = ""
	_, err := s.users.InsertOne(ctx, u)
	return translateMongoError(err)
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return models.User{}, translateMongoError(err)
	}
	return u, nil
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetUserByPublicID(ctx context.Context, publicID string) (models.User, error) {
	return s.findUser(ctx, bson.M{"public_id": bson.M{"$eq": publicID}})
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := []models.User{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateUserRole(ctx context.Context, publicID string, role models.Role) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"public_id": publicID}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func translateMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
