package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"poimap-server/cache"
	"poimap-server/config"
	"poimap-server/events"
	"poimap-server/models"
	"poimap-server/services"
	"poimap-server/store"
)

// app is the wired set of components every command works with.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
	redis  *redis.Client
	bus    *events.RedisBus

	auth       *services.AuthService
	users      *services.UserService
	points     *services.PointService
	categories *services.CategoryService
	admin      *services.AdminService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if cfg.StoreDriver == "sqlite" && cfg.DatabaseURL != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	st, err := store.Open(ctx, store.Options{
		Driver:        cfg.StoreDriver,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		DatabaseURL:   cfg.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("store opened", zap.String("driver", cfg.StoreDriver))

	a := &app{cfg: cfg, logger: logger, store: st}

	var (
		pub     events.Publisher = events.NewLogPublisher(logger)
		index   services.GeoIndexer
		revoker services.Revoker
	)
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			st.Close(ctx)
			return nil, err
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		a.redis = client
		a.bus = events.NewRedisBus(client, logger)
		pub = a.bus
		index = cache.NewGeoIndex(client)
		revoker = cache.NewRevocations(client)
	} else {
		logger.Warn("REDIS_ADDR not set: nearby queries scan the store and logout cannot revoke tokens")
	}

	a.points = services.NewPointService(st, pub, logger, services.PointOptions{
		BBox:        cfg.BBox,
		DedupRadius: cfg.DedupRadius,
		Index:       index,
	})
	a.auth = services.NewAuthService(st, revoker, pub, logger, cfg.JWTSecret, cfg.SessionTTL)
	a.users = services.NewUserService(st, logger)
	a.categories = services.NewCategoryService(st, logger)
	a.admin = services.NewAdminService(st, a.points, logger)
	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
}

// bootstrap creates the configured admin and seeds an empty database.
func (a *app) bootstrap(ctx context.Context) error {
	if a.cfg.AdminUsername != "" && a.cfg.AdminPassword != "" {
		created, err := a.auth.EnsureAdmin(ctx, a.cfg.AdminUsername, a.cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to create bootstrap admin: %w", err)
		}
		if created {
			a.logger.Info("bootstrap admin created", zap.String("username", a.cfg.AdminUsername))
		}
	}

	var categories []models.Category
	if a.cfg.CategoriesFile != "" {
		cats, err := services.LoadCategoriesFile(a.cfg.CategoriesFile)
		switch {
		case err == nil:
			categories = cats
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Debug("categories file not found", zap.String("path", a.cfg.CategoriesFile))
		default:
			return err
		}
	}
	var snap models.Snapshot
	if a.cfg.SeedFile != "" {
		s, err := services.LoadSnapshotFile(a.cfg.SeedFile)
		if err != nil {
			return err
		}
		snap = s
	}
	if len(categories) > 0 || len(snap.Categories) > 0 || len(snap.Points) > 0 {
		ctx := services.WithPrincipal(ctx, services.SystemPrincipal)
		report, seeded, err := a.admin.Seed(ctx, categories, snap)
		if err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
		if seeded {
			a.logger.Info("database seeded",
				zap.Int("categories", report.CategoriesAdded),
				zap.Int("points", report.PointsAdded),
				zap.Int("skipped", len(report.Skipped)),
			)
		}
	}
	return nil
}
