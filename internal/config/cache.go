package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled. Methods lists the HTTP methods to cache. Cached entries are
// namespaced per user, and every successful write by that user bumps a
// generation counter so stale list and detail responses are never served.
type CacheConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	MethodList   []string      `env:"METHODS" envSeparator:"," envDefault:"GET"`
	TTL          time.Duration `env:"TTL" envDefault:"30s"`
	Prefix       string        `env:"PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// Methods returns the cacheable methods as an upper-cased set.
func (c CacheConfig) Methods() map[string]bool {
	m := map[string]bool{}
	for _, p := range c.MethodList {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
