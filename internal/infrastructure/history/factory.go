package history

import (
	"fmt"
	"path/filepath"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/filesystem"
	"github.com/doeshing/phocache/internal/ports"
)

// DefaultPath returns where an engine keeps its files when storage.path is unset.
func DefaultPath(engine string) string {
	base := filepath.Join(filesystem.UserHomeDir(), ".phocache")
	switch engine {
	case domain.EngineBadger:
		return filepath.Join(base, "badger")
	default:
		return filepath.Join(base, "history.db")
	}
}

// NewOpener selects the engine named by storage.engine.
func NewOpener(cfg domain.Config, log ports.Logger) (Opener, error) {
	path := cfg.Storage.Path
	if path == "" {
		path = DefaultPath(cfg.Storage.Engine)
	}

	switch cfg.Storage.Engine {
	case "", domain.EngineSQLite:
		return SQLiteOpener(path), nil
	case domain.EngineBadger:
		return BadgerOpener(path), nil
	case domain.EngineRedis:
		timeout, err := cfg.RedisConnectTimeout()
		if err != nil {
			return nil, err
		}
		return RedisOpener(RedisOptions{
			Addr:           cfg.Storage.Redis.Addr,
			Username:       cfg.Storage.Redis.Username,
			Password:       cfg.Storage.Redis.Password,
			DB:             cfg.Storage.Redis.DB,
			ConnectTimeout: timeout,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

// NewStoreFromConfig builds the record store described by cfg.
func NewStoreFromConfig(cfg domain.Config, log ports.Logger) (*Store, error) {
	open, err := NewOpener(cfg, log)
	if err != nil {
		return nil, err
	}
	quota, err := cfg.QuotaBytes()
	if err != nil {
		return nil, err
	}
	return NewStore(open, quota), nil
}
