package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsProduceUsableConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.True(t, cfg.Finance.StrictDiscounts)
	assert.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Contains(t, cfg.Uploads.AllowedMIMEs, "application/pdf")
	assert.Equal(t, 5*time.Minute, cfg.Cache.RosterTTL)
	assert.Equal(t, 2, cfg.Audit.Workers)
}

func TestOverridesFromViper(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "S3")
	v.Set("DISCOUNT_STRICT_RESOLUTION", false)
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, StorageDriverS3, cfg.Storage.Driver)
	assert.False(t, cfg.Finance.StrictDiscounts)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestDatabaseURL(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "app", Password: "p@ss", Name: "finance", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5433/finance?sslmode=disable", cfg.URL())
	assert.Equal(t, "host=db port=5433 user=app password=p@ss dbname=finance sslmode=disable", cfg.DSN())
}
