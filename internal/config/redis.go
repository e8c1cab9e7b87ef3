package config

// Redis is used for distributed rate limiting and HTTP response caching.
// If the server cannot be reached during startup, NewRedisClient returns
// nil and callers degrade gracefully: caching is disabled and rate
// limiting falls back to an in-process bucket.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection parameters. Addr wins over
// Host/Port when set.
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Addr     string `env:"ADDR"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	TLS      bool   `env:"TLS" envDefault:"false"`
}

// Address resolves the host:port to dial.
func (r RedisConfig) Address() string {
	if r.Addr != "" {
		return r.Addr
	}
	return r.Host + ":" + r.Port
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout. The returned client is nil when Redis is disabled or unreachable.
func NewRedisClient(rc RedisConfig) *redis.Client {
	if !rc.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Address(),
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
