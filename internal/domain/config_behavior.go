package domain

import (
	"fmt"
	"time"

	"github.com/doeshing/phocache/internal/pkg/bytesize"
)

// QuotaBytes parses storage.quota, falling back to DefaultQuota.
func (c *Config) QuotaBytes() (int64, error) {
	raw := c.Storage.Quota
	if raw == "" {
		raw = DefaultQuota
	}
	n, err := bytesize.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("storage.quota: %w", err)
	}
	return n, nil
}

// SoftLimitBytes parses history.soft_limit, falling back to DefaultSoftLimitBytes.
func (c *Config) SoftLimitBytes() (int64, error) {
	if c.History.SoftLimit == "" {
		return DefaultSoftLimitBytes, nil
	}
	n, err := bytesize.Parse(c.History.SoftLimit)
	if err != nil {
		return 0, fmt.Errorf("history.soft_limit: %w", err)
	}
	return n, nil
}

// RedisConnectTimeout parses storage.redis.connect_timeout.
func (c *Config) RedisConnectTimeout() (time.Duration, error) {
	if c.Storage.Redis.ConnectTimeout == "" {
		return DefaultRedisConnectTimeout, nil
	}
	d, err := time.ParseDuration(c.Storage.Redis.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("storage.redis.connect_timeout: %w", err)
	}
	return d, nil
}

// HistoryMaxItems returns the per-category cap.
func (c *Config) HistoryMaxItems() int {
	if c.History.MaxItems <= 0 {
		return DefaultMaxHistoryItems
	}
	return c.History.MaxItems
}

// KnownEngine reports whether storage.engine names a supported engine.
func (c *Config) KnownEngine() bool {
	switch c.Storage.Engine {
	case EngineSQLite, EngineBadger, EngineRedis:
		return true
	default:
		return false
	}
}
