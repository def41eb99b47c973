// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/imaging"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/metadata"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/repository/file"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/repository/prefs"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/system"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
	"github.com/tejashwikalptaru/gotune-queue/internal/service"
)

// Application is the root application structure that holds all dependencies.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the lifecycle (Start, Shutdown)
// - Handing services to the CLI or an embedding player
type Application struct {
	// Core dependencies
	logger  *slog.Logger
	config  Config
	fyneApp fyne.App

	// Infrastructure
	eventBus *eventbus.SyncEventBus
	store    *file.Store

	// Repositories
	queueRepo ports.QueueRepository
	catalog   ports.TrackCatalog
	stats     ports.PlayStatsSink

	// Services
	queueService   *service.QueueService
	libraryService *service.LibraryService
	imageLoader    *service.ImageLoader
	memoryMonitor  *service.MemoryMonitor
	artwork        *imaging.Cache

	artworkResponder service.ResponderID
	shutdownOnce     sync.Once
	shutdownErr      error
}

// NewApplication creates a new application with all dependencies wired.
// Nothing is loaded or started until Start.
func NewApplication(config Config) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{config: config}

	// Step 1: Create logger
	app.logger = logger.NewLogger(logger.Config{
		Level:  config.LogLevel,
		Format: config.LogFormat,
		Output: config.LogOutput,
	})
	app.logger.Info("initializing application",
		slog.String("app_id", config.AppID),
		slog.String("storage", config.Storage),
		slog.Int64("profile_id", int64(config.ProfileID)))

	// Step 2: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus(app.logger.With(slog.String("component", "eventbus")))

	// Step 3: Create repositories
	if err := app.openStorage(); err != nil {
		return nil, err
	}

	// Step 4: Create the queue service and its save coordinator
	saver := service.NewSaveCoordinator(
		app.logger.With(slog.String("component", "save_coordinator")),
		config.saveCoordinatorConfig(),
	)
	app.queueService = service.NewQueueService(
		app.logger.With(slog.String("service", "queue")),
		config.queueServiceConfig(),
		app.queueRepo,
		app.catalog,
		app.stats,
		app.eventBus,
		saver,
	)

	// Step 5: Create artwork decoding
	decoder := imaging.NewDecoder(app.logger.With(slog.String("component", "decoder")))
	artwork, err := imaging.NewCache(
		app.logger.With(slog.String("component", "artwork_cache")),
		decoder,
		config.ImageCacheEntries,
	)
	if err != nil {
		_ = app.queueService.Shutdown()
		return nil, err
	}
	app.artwork = artwork
	app.imageLoader = service.NewImageLoader(
		app.logger.With(slog.String("service", "image_loader")),
		config.imageLoaderConfig(),
		artwork,
		app.eventBus,
	)

	// Step 6: Create the memory monitor and register the artwork cache
	sampler := config.MemorySampler
	if sampler == nil {
		sampler = system.NewMemorySampler()
	}
	app.memoryMonitor = service.NewMemoryMonitor(
		app.logger.With(slog.String("service", "memory_monitor")),
		config.memoryMonitorConfig(),
		sampler,
		app.eventBus,
	)
	app.artworkResponder = app.memoryMonitor.Register(artwork)

	// Step 7: Create the library scanner
	app.libraryService = service.NewLibraryService(
		app.logger.With(slog.String("service", "library")),
		metadata.NewTagReader(),
		app.catalog,
		app.eventBus,
	)

	return app, nil
}

func (a *Application) openStorage() error {
	switch a.config.Storage {
	case StoragePrefs:
		if a.config.TestFyneApp != nil {
			a.fyneApp = a.config.TestFyneApp
		} else {
			a.fyneApp = fyneapp.NewWithID(a.config.AppID)
		}
		p := a.fyneApp.Preferences()
		repoLogger := a.logger.With(slog.String("component", "prefs"))
		a.queueRepo = prefs.NewQueueRepository(p, repoLogger)
		a.catalog = prefs.NewCatalogRepository(p, repoLogger)
		a.stats = prefs.NewStatsRepository(p)
	default:
		store, err := file.Open(a.config.StorePath(), a.logger.With(slog.String("component", "file_store")))
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		a.store = store
		a.queueRepo = store
		a.catalog = store
		a.stats = store
	}
	return nil
}

// Start restores the saved queue and begins memory sampling. A queue that
// cannot be loaded is logged and the application continues with an empty queue.
func (a *Application) Start(ctx context.Context) error {
	if err := a.queueService.Load(ctx); err != nil {
		a.logger.Warn("failed to load saved queue", slog.Any("error", err))
	}
	a.memoryMonitor.Start()

	a.logger.Info("application started",
		slog.Int("queue_length", a.queueService.Len()),
		slog.Int("current_index", a.queueService.CurrentIndex()))
	return nil
}

// Shutdown flushes pending queue saves and stops every worker. It is safe
// to call more than once; later calls return the first result.
func (a *Application) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")
		var errs []error

		if err := a.libraryService.Shutdown(); err != nil {
			errs = append(errs, err)
		}

		// Queue saves are flushed before any worker is stopped.
		if err := a.queueService.OnShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := a.queueService.Shutdown(); err != nil {
			errs = append(errs, err)
		}

		a.memoryMonitor.Stop()
		a.memoryMonitor.Unregister(a.artworkResponder)

		if err := a.imageLoader.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("image loader: %w", err))
		}
		if err := a.eventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}

		a.shutdownErr = errors.Join(errs...)
		if a.shutdownErr != nil {
			a.logger.Warn("application shutdown finished with errors", slog.Any("error", a.shutdownErr))
			return
		}
		a.logger.Info("application shutdown complete")
	})
	return a.shutdownErr
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Config returns the configuration the application was built with.
func (a *Application) Config() Config {
	return a.config
}

// EventBus returns the event bus.
func (a *Application) EventBus() ports.EventBus {
	return a.eventBus
}

// QueueService returns the playback queue.
func (a *Application) QueueService() *service.QueueService {
	return a.queueService
}

// LibraryService returns the library scanner.
func (a *Application) LibraryService() *service.LibraryService {
	return a.libraryService
}

// ImageLoader returns the artwork load queue.
func (a *Application) ImageLoader() *service.ImageLoader {
	return a.imageLoader
}

// MemoryMonitor returns the memory pressure monitor.
func (a *Application) MemoryMonitor() *service.MemoryMonitor {
	return a.memoryMonitor
}

// ArtworkCache returns the decoded artwork cache.
func (a *Application) ArtworkCache() *imaging.Cache {
	return a.artwork
}

// Catalog returns the track catalog of the configured storage.
func (a *Application) Catalog() ports.TrackCatalog {
	return a.catalog
}

// QueueRepository returns the queue repository of the configured storage.
func (a *Application) QueueRepository() ports.QueueRepository {
	return a.queueRepo
}

// Store returns the file store, or nil with prefs storage.
func (a *Application) Store() *file.Store {
	return a.store
}

// FyneApp returns the Fyne application, or nil with file storage.
func (a *Application) FyneApp() fyne.App {
	return a.fyneApp
}
