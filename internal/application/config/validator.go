package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/phocache/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if !cfg.KnownEngine() {
		return fmt.Errorf("storage.engine must be sqlite|badger|redis, got %s", cfg.Storage.Engine)
	}
	if err := validateStorage(cfg); err != nil {
		return err
	}
	if err := validateHistory(cfg); err != nil {
		return err
	}
	if err := validateCompression(cfg.Compression); err != nil {
		return err
	}
	if err := validateThumbnail(cfg.Thumbnail); err != nil {
		return err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	return nil
}

func validateStorage(cfg domain.Config) error {
	if _, err := cfg.QuotaBytes(); err != nil {
		return err
	}
	if cfg.Storage.Engine != domain.EngineRedis {
		return nil
	}
	if cfg.Storage.Redis.Addr == "" {
		return errors.New("storage.redis.addr must be set for the redis engine")
	}
	if cfg.Storage.Redis.DB < 0 {
		return fmt.Errorf("storage.redis.db must be >= 0")
	}
	if _, err := cfg.RedisConnectTimeout(); err != nil {
		return err
	}
	return nil
}

func validateHistory(cfg domain.Config) error {
	if cfg.History.MaxItems < 0 {
		return fmt.Errorf("history.max_items must be > 0")
	}
	if _, err := cfg.SoftLimitBytes(); err != nil {
		return err
	}
	return nil
}

func validateCompression(c domain.CompressionSettings) error {
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return fmt.Errorf("compression bounds must be > 0, got %dx%d", c.MaxWidth, c.MaxHeight)
	}
	return validateQuality("compression.quality", c.Quality)
}

func validateThumbnail(t domain.ThumbnailSettings) error {
	if t.Width < 0 || t.Height < 0 {
		return fmt.Errorf("thumbnail size must be > 0, got %dx%d", t.Width, t.Height)
	}
	return validateQuality("thumbnail.quality", t.Quality)
}

func validateLogging(l domain.LoggingSettings) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %s", l.Level)
	}
}

func validateQuality(field string, q float64) error {
	if q < 0 || q > 1 {
		return fmt.Errorf("%s must be in (0,1], got %g", field, q)
	}
	return nil
}
