package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "JWT_SECRET", "SESSION_TTL", "STORE_DRIVER",
		"REDIS_DB", "DEDUP_RADIUS_METERS", "BBOX", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, DefaultBBox, cfg.BBox)
	assert.Equal(t, 100.0, cfg.DedupRadius)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("BBOX", "-10,-10,10,10")
	t.Setenv("ALLOWED_ORIGINS", "*, http://x ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.BBox.Contains(0, 0))
	assert.False(t, cfg.BBox.Contains(-23, -46))
	assert.Equal(t, []string{"*", "http://x"}, cfg.AllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":        "cassandra",
		"SESSION_TTL":         "soon",
		"BBOX":                "1,2",
		"DEDUP_RADIUS_METERS": "-5",
		"REDIS_DB":            "zero",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
