package cache

import "time"

// Config holds cache TTL configuration
type Config struct {
	NIP05TTL          time.Duration
	NIP05NotFoundTTL  time.Duration
	DomainTTL         time.Duration
	DomainNotFoundTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		NIP05TTL:          24 * time.Hour, // identifiers rarely move between pubkeys
		NIP05NotFoundTTL:  5 * time.Minute,
		DomainTTL:         1 * time.Hour, // directory listings change more often
		DomainNotFoundTTL: 5 * time.Minute,
	}
}
