package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/phocache/assets"
	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/filesystem"
	"github.com/doeshing/phocache/internal/ports"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "PHOCACHE_CONFIG"

// FileLoader loads YAML configuration from ~/.phocache/config.yaml (overridable via PHOCACHE_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
		data = assets.DefaultConfigYAML
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return hydrateDefaults(cfg), nil
}

// Path returns the config file the loader reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".phocache", "config.yaml")
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse default config: %w", err)
	}
	return hydrateDefaults(cfg), nil
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Storage.Engine == "" {
		cfg.Storage.Engine = domain.EngineSQLite
	}
	cfg.Storage.Engine = strings.ToLower(cfg.Storage.Engine)
	if cfg.Storage.Path != "" {
		cfg.Storage.Path = expandPath(cfg.Storage.Path)
	}
	if cfg.Storage.Quota == "" {
		cfg.Storage.Quota = domain.DefaultQuota
	}
	if cfg.History.MaxItems == 0 {
		cfg.History.MaxItems = domain.DefaultMaxHistoryItems
	}
	if cfg.Compression.MaxWidth == 0 {
		cfg.Compression.MaxWidth = domain.DefaultMaxWidth
	}
	if cfg.Compression.MaxHeight == 0 {
		cfg.Compression.MaxHeight = domain.DefaultMaxHeight
	}
	if cfg.Compression.Quality == 0 {
		cfg.Compression.Quality = domain.DefaultQuality
	}
	if cfg.Thumbnail.Width == 0 {
		cfg.Thumbnail.Width = domain.DefaultThumbnailSize
	}
	if cfg.Thumbnail.Height == 0 {
		cfg.Thumbnail.Height = domain.DefaultThumbnailSize
	}
	if cfg.Thumbnail.Quality == 0 {
		cfg.Thumbnail.Quality = domain.DefaultThumbnailQuality
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if path == "~" {
		return filesystem.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
