package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"poimap-server/utils/geo"
)

const defaultJWTSecret = "change-me-in-production"

// DefaultBBox covers Brazil.
var DefaultBBox = geo.BBox{MinLat: -33.75, MinLon: -73.99, MaxLat: 5.27, MaxLon: -34.79}

// Config holds application configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	JWTSecret  string
	SessionTTL time.Duration

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	RedisAddr string
	RedisDB   int

	AllowedOrigins []string
	BBox           geo.BBox
	DedupRadius    float64

	AdminUsername  string
	AdminPassword  string
	SeedFile       string
	CategoriesFile string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "poi_db"),
		DatabaseURL:    getEnv("DATABASE_URL", "./data/poimap.db"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		AdminUsername:  os.Getenv("ADMIN_USERNAME"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		SeedFile:       os.Getenv("SEED_FILE"),
		CategoriesFile: getEnv("CATEGORIES_FILE", "./data/categories.yaml"),
		BBox:           DefaultBBox,
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}
	if cfg.DedupRadius, err = strconv.ParseFloat(getEnv("DEDUP_RADIUS_METERS", "100"), 64); err != nil || cfg.DedupRadius < 0 {
		return nil, fmt.Errorf("invalid DEDUP_RADIUS_METERS %q", os.Getenv("DEDUP_RADIUS_METERS"))
	}
	if raw := os.Getenv("BBOX"); raw != "" {
		if cfg.BBox, err = geo.ParseBBox(raw); err != nil {
			return nil, fmt.Errorf("invalid BBOX: %w", err)
		}
	}

	switch cfg.StoreDriver {
	case "mongo", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.IsProduction() && cfg.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("production environment detected, but JWT_SECRET not set")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
