package config

import "time"

// RateLimitConfig configures the token bucket applied to every request.
// The bucket lives in Redis when a client is available and in process
// memory otherwise.
type RateLimitConfig struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	Capacity       int           `env:"CAPACITY" envDefault:"60"`
	RefillTokens   int           `env:"REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"1s"`
	TTL            time.Duration `env:"TTL" envDefault:"10m"`
	KeyStrategy    string        `env:"KEY_STRATEGY" envDefault:"ip_user_route"`
	Prefix         string        `env:"PREFIX" envDefault:"rl"`
}

// Normalized clamps nonsensical values to safe minimums.
func (r RateLimitConfig) Normalized() RateLimitConfig {
	if r.Capacity < 1 {
		r.Capacity = 1
	}
	if r.RefillTokens < 1 {
		r.RefillTokens = 1
	}
	if r.RefillInterval <= 0 {
		r.RefillInterval = time.Second
	}
	if minTTL := 5 * r.RefillInterval; r.TTL < minTTL {
		r.TTL = minTTL
	}
	return r
}

// PerSecond is the refill rate expressed as tokens per second.
func (r RateLimitConfig) PerSecond() float64 {
	r = r.Normalized()
	return float64(r.RefillTokens) / r.RefillInterval.Seconds()
}
