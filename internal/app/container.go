package app

import (
	"context"
	"errors"
	"fmt"

	appconfig "github.com/doeshing/phocache/internal/application/config"
	"github.com/doeshing/phocache/internal/application/doctor"
	historyapp "github.com/doeshing/phocache/internal/application/history"
	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/infrastructure/config"
	"github.com/doeshing/phocache/internal/infrastructure/history"
	"github.com/doeshing/phocache/internal/infrastructure/imaging"
	"github.com/doeshing/phocache/internal/pkg/logger"
	"github.com/doeshing/phocache/internal/ports"
)

// Options controls how the container is built.
type Options struct {
	Verbose    bool
	ConfigPath string
	// Lenient builds whatever the config allows instead of failing on an
	// invalid one. Components that cannot be built are left nil.
	Lenient bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         *logger.ZapLogger
	HistoryStore   *history.Store
	HistoryService *historyapp.Service
	DoctorService  *doctor.Service
}

// BuildContainer constructs the dependency graph. The storage engine is not
// opened until the first history operation.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := appconfig.Validate(cfg); err != nil && !opts.Lenient {
		return nil, fmt.Errorf("invalid config %s: %w", cfgLoader.Path(), err)
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.Logging.Pretty)
	if err != nil && opts.Lenient {
		log, err = logger.New("", cfg.Logging.Pretty)
	}
	if err != nil {
		return nil, err
	}

	codec := imaging.NewJPEGCodec()
	container := &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		DoctorService: &doctor.Service{
			ConfigProvider: cfgLoader,
			Codec:          codec,
		},
	}

	historyStore, err := history.NewStoreFromConfig(cfg, log)
	if err != nil {
		if opts.Lenient {
			log.Warn("history store unavailable", map[string]interface{}{"error": err.Error()})
			return container, nil
		}
		return nil, err
	}
	container.HistoryStore = historyStore
	container.DoctorService.Store = historyStore

	settings, err := historyapp.SettingsFromConfig(cfg)
	if err != nil {
		if opts.Lenient {
			log.Warn("history settings unavailable", map[string]interface{}{"error": err.Error()})
			return container, nil
		}
		_ = historyStore.Close()
		return nil, err
	}
	container.HistoryService = &historyapp.Service{
		Store:      historyStore,
		Transcoder: imaging.NewTranscoder(codec),
		Logger:     log,
		Settings:   settings,
	}
	return container, nil
}

// Close releases the storage engine and flushes the logger.
func (c *Container) Close() error {
	var errs []error
	if c.HistoryStore != nil {
		errs = append(errs, c.HistoryStore.Close())
	}
	if c.Logger != nil {
		// Sync reports EINVAL for terminal stderr.
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}
