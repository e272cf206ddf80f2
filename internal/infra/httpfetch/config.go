// Package httpfetch implements the raw HTTP fetch primitive shared by every
// crawler kind: SSRF-safe URL validation, bounded response reading, redirect
// validation, per-host rate limiting, and circuit-breaker-wrapped retries.
package httpfetch

import (
	"fmt"
	"time"

	"crawlcast/internal/pkg/config"
	pkgconfig "crawlcast/pkg/config"
)

// Config controls the security and performance behavior of Fetcher.
type Config struct {
	Timeout        time.Duration
	MaxBodySize    int64
	MaxRedirects   int
	DenyPrivateIPs bool

	// PerHostRPS and PerHostBurst bound outbound request rate to any single
	// host, independent of the global crawl concurrency limit.
	PerHostRPS   float64
	PerHostBurst int

	UserAgent string
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		PerHostRPS:     1,
		PerHostBurst:   3,
		UserAgent:      "CrawlcastBot/1.0",
	}
}

// Validate checks the configuration for safe, sane bounds.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	minBodySize := int64(1024)
	maxBodySize := int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	if c.PerHostRPS <= 0 {
		return fmt.Errorf("per-host RPS must be positive, got %v", c.PerHostRPS)
	}
	return nil
}

// LoadConfigFromEnv loads configuration from the environment, falling back
// to defaults (with a logged warning) on any invalid value. It never errors.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.Timeout = config.LoadEnvDuration("FETCH_TIMEOUT", cfg.Timeout, pkgconfig.ValidatePositiveDuration).
		Value.(time.Duration)
	cfg.MaxRedirects = config.LoadEnvInt("FETCH_MAX_REDIRECTS", cfg.MaxRedirects, func(v int) error {
		if v < 0 || v > 10 {
			return fmt.Errorf("must be between 0 and 10")
		}
		return nil
	}).Value.(int)
	cfg.DenyPrivateIPs = config.LoadEnvBool("FETCH_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs).Value.(bool)
	cfg.PerHostBurst = config.LoadEnvInt("FETCH_PER_HOST_BURST", cfg.PerHostBurst, nil).Value.(int)

	if err := cfg.Validate(); err != nil {
		return DefaultConfig()
	}

	return cfg
}
