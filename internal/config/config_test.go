package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"JWT_SECRET": "s3cret"})
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, StoreMySQL, cfg.App.StoreDriver)
	assert.Equal(t, "3306", cfg.DB.Port)
	assert.Equal(t, 15, cfg.JWT.AccessTTLMin)
	assert.Equal(t, 7, cfg.JWT.RefreshTTLDays)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "local", cfg.Media.Driver)
	assert.Equal(t, time.Second, cfg.Wait.Interval)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Cache.Methods()["GET"])
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_ENV":                    "production",
		"APP_STORE_DRIVER":           "memory",
		"JWT_SECRET":                 "x",
		"DB_HOST":                    "db",
		"REDIS_ADDR":                 "cache:6380",
		"CACHE_METHODS":              "get, head",
		"RATE_LIMIT_REFILL_INTERVAL": "2s",
		"MEDIA_DRIVER":               "s3",
		"WAIT_TIMEOUT":               "5s",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreMemory, cfg.App.StoreDriver)
	assert.Equal(t, "db", cfg.DB.Host)
	assert.Equal(t, "cache:6380", cfg.Redis.Address())
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.Methods())
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "s3", cfg.Media.Driver)
	assert.Equal(t, 5*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromRequiresSecretOutsideTest(t *testing.T) {
	_, err := LoadFrom(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	_, err = LoadFrom(map[string]string{"APP_ENV": "test"})
	assert.NoError(t, err)
}

func TestLoadFromRejectsUnknownDrivers(t *testing.T) {
	_, err := LoadFrom(map[string]string{"JWT_SECRET": "x", "APP_STORE_DRIVER": "sqlite"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"JWT_SECRET": "x", "MEDIA_DRIVER": "ftp"})
	assert.Error(t, err)
}

func TestRateLimitNormalized(t *testing.T) {
	rl := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}.Normalized()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, time.Second, rl.RefillInterval)
	assert.Equal(t, 5*time.Second, rl.TTL)

	assert.InDelta(t, 2.0, RateLimitConfig{RefillTokens: 4, RefillInterval: 2 * time.Second}.PerSecond(), 1e-9)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "localhost:6379", RedisConfig{Host: "localhost", Port: "6379"}.Address())
	assert.Equal(t, "r:1", RedisConfig{Addr: "r:1", Host: "x", Port: "2"}.Address())
}
