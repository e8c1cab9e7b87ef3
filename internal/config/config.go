// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each group is read from
// variables sharing the group's prefix (DB_HOST, JWT_SECRET, ...).
type Config struct {
	App        AppConfig       `envPrefix:"APP_"`
	DB         DBConfig        `envPrefix:"DB_"`
	JWT        JWTConfig       `envPrefix:"JWT_"`
	BcryptCost int             `env:"BCRYPT_COST" envDefault:"10"`
	Redis      RedisConfig     `envPrefix:"REDIS_"`
	Cache      CacheConfig     `envPrefix:"CACHE_"`
	RateLimit  RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Media      MediaConfig     `envPrefix:"MEDIA_"`
	AMQPURL    string          `env:"AMQP_URL"`
	Log        LogConfig       `envPrefix:"LOG_"`
	Wait       WaitConfig      `envPrefix:"WAIT_"`

	// SuperuserPassword is read by create-superuser when --password is omitted.
	SuperuserPassword string `env:"SUPERUSER_PASSWORD"`
}

// AppConfig describes the process itself.
type AppConfig struct {
	Env         string `env:"ENV" envDefault:"dev"`   // dev, test, production
	Port        string `env:"PORT" envDefault:"8000"` // HTTP port to listen on
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mysql"`
}

// DBConfig holds the MySQL connection parameters.
type DBConfig struct {
	User     string        `env:"USER" envDefault:"root"`
	Pass     string        `env:"PASS"`
	Host     string        `env:"HOST" envDefault:"127.0.0.1"`
	Port     string        `env:"PORT" envDefault:"3306"`
	Name     string        `env:"NAME" envDefault:"recipe"`
	MaxConns int           `env:"MAX_CONNS" envDefault:"25"`
	ConnLife time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// JWTConfig controls token issuing.
type JWTConfig struct {
	Secret         string `env:"SECRET"`
	AccessTTLMin   int    `env:"ACCESS_TTL_MIN" envDefault:"15"`
	RefreshTTLDays int    `env:"REFRESH_TTL_DAYS" envDefault:"7"`
}

// MediaConfig selects and configures the blob store for recipe images.
type MediaConfig struct {
	Driver         string `env:"DRIVER" envDefault:"local"` // local or s3
	Root           string `env:"ROOT" envDefault:"./media"`
	URLPrefix      string `env:"URL_PREFIX" envDefault:"/media/"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"recipes"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
}

// LogConfig feeds logger.New.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT"` // json or text; derived from APP_ENV when empty
}

// WaitConfig controls the wait-for-db loop.
type WaitConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1s"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production") || strings.EqualFold(c.App.Env, "prod")
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom builds a Config from an explicit variable map instead of the
// process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" && !strings.EqualFold(c.App.Env, "test") {
		return errors.New("missing required env var: JWT_SECRET")
	}
	switch c.App.StoreDriver {
	case StoreMySQL, StoreMemory:
	default:
		return fmt.Errorf("invalid APP_STORE_DRIVER %q", c.App.StoreDriver)
	}
	switch c.Media.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("invalid MEDIA_DRIVER %q", c.Media.Driver)
	}
	if c.JWT.AccessTTLMin <= 0 || c.JWT.RefreshTTLDays <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
		if c.IsProduction() {
			c.Log.Format = "json"
		}
	}
	return nil
}
