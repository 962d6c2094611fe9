// Package store persists points, categories and users. Two backends exist:
// MongoDB (documents) and SQL through sqlx (SQLite embedded, or Postgres).
package store

import (
	"context"
	"errors"
	"fmt"

	"poimap-server/models"
	"poimap-server/utils/geo"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// PointQuery is a coarse filter pushed down to the backend. Empty fields match everything.
type PointQuery struct {
	IDs        []string
	Categories []string
	Statuses   []models.PointStatus
	Deleted    *bool
	NameKey    string
	CreatedBy  string
	BBox       *geo.BBox
}

// Live matches only points that are not soft-deleted.
func Live() *bool {
	f := false
	return &f
}

// Trashed matches only soft-deleted points.
func Trashed() *bool {
	t := true
	return &t
}

type PointStore interface {
	InsertPoint(ctx context.Context, p models.Point) error
	GetPoint(ctx context.Context, id string) (models.Point, error)
	UpdatePoint(ctx context.Context, p models.Point) error
	DeletePoint(ctx context.Context, id string) error
	FindPoints(ctx context.Context, q PointQuery) ([]models.Point, error)
}

type CategoryStore interface {
	InsertCategory(ctx context.Context, c models.Category) error
	GetCategory(ctx context.Context, id string) (models.Category, error)
	UpdateCategory(ctx context.Context, c models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type UserStore interface {
	InsertUser(ctx context.Context, u models.User) error
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByPublicID(ctx context.Context, publicID string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, publicID string, role models.Role) error
}

type Store interface {
	PointStore
	CategoryStore
	UserStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "mongo":
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
	case "sqlite", "postgres":
		return NewSQLStore(opts.Driver, opts.DatabaseURL)
	}
	return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
}
