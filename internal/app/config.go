package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"

	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/repository/file"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
	"github.com/tejashwikalptaru/gotune-queue/internal/service"
)

// Storage backends.
const (
	StorageFile  = "file"
	StoragePrefs = "prefs"
)

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier, also the Fyne preferences namespace
	AppID string

	// AppName is the display name
	AppName string

	// ProfileID selects whose queue is loaded
	ProfileID domain.ProfileID

	// Storage is StorageFile or StoragePrefs
	Storage string

	// DataDir holds the file store
	DataDir string

	SaveDebounce   time.Duration
	WriteTimeout   time.Duration
	LoadRetries    int
	LoadRetryDelay time.Duration

	ImageWorkers         int
	ImageCacheEntries    int
	ImageShutdownTimeout time.Duration

	MemorySampleInterval time.Duration
	MemoryHighThreshold  float64

	// LogLevel controls logging verbosity
	LogLevel  slog.Level
	LogFormat string

	// LogOutput overrides the log destination (nil for stderr)
	LogOutput io.Writer

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App

	// MemorySampler replaces the gopsutil sampler (nil for production)
	MemorySampler ports.MemorySampler
}

// DefaultConfig returns the default application configuration with
// GOTUNE_DATA_DIR, GOTUNE_PROFILE and GOTUNE_STORAGE applied.
func DefaultConfig() Config {
	loggerCfg := logger.DefaultConfig()
	saveCfg := service.DefaultSaveCoordinatorConfig()
	queueCfg := service.DefaultQueueServiceConfig()
	imageCfg := service.DefaultImageLoaderConfig()
	memCfg := service.DefaultMemoryMonitorConfig()

	cfg := Config{
		AppID:                "com.gotune.app",
		AppName:              "GoTune",
		ProfileID:            queueCfg.ProfileID,
		Storage:              StorageFile,
		DataDir:              defaultDataDir(),
		SaveDebounce:         saveCfg.DebounceWindow,
		WriteTimeout:         saveCfg.WriteTimeout,
		LoadRetries:          queueCfg.LoadRetries,
		LoadRetryDelay:       queueCfg.LoadRetryDelay,
		ImageWorkers:         imageCfg.Workers,
		ImageCacheEntries:    128,
		ImageShutdownTimeout: imageCfg.ShutdownTimeout,
		MemorySampleInterval: memCfg.Interval,
		MemoryHighThreshold:  memCfg.HighThreshold,
		LogLevel:             loggerCfg.Level,
		LogFormat:            loggerCfg.Format,
	}

	if dir := os.Getenv("GOTUNE_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if v := os.Getenv("GOTUNE_PROFILE"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ProfileID = domain.ProfileID(id)
		}
	}
	if v := os.Getenv("GOTUNE_STORAGE"); v != "" {
		cfg.Storage = strings.ToLower(v)
	}

	return cfg
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gotune")
	}
	return filepath.Join(dir, "gotune")
}

// StorePath returns the file store location.
func (c Config) StorePath() string {
	return filepath.Join(c.DataDir, file.DefaultFileName)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !lo.Contains([]string{StorageFile, StoragePrefs}, c.Storage) {
		return domain.NewValidationError("Storage", c.Storage, "must be file or prefs")
	}
	if c.Storage == StorageFile && c.DataDir == "" {
		return domain.NewValidationError("DataDir", c.DataDir, "required for file storage")
	}
	if c.ProfileID <= 0 {
		return domain.NewValidationError("ProfileID", c.ProfileID, "must be positive")
	}
	if c.ImageCacheEntries <= 0 {
		return domain.NewValidationError("ImageCacheEntries", c.ImageCacheEntries, "must be positive")
	}
	if c.MemoryHighThreshold <= 0 || c.MemoryHighThreshold > 100 {
		return domain.NewValidationError("MemoryHighThreshold", c.MemoryHighThreshold, "must be within (0, 100]")
	}
	return nil
}

func (c Config) saveCoordinatorConfig() service.SaveCoordinatorConfig {
	return service.SaveCoordinatorConfig{
		DebounceWindow: c.SaveDebounce,
		WriteTimeout:   c.WriteTimeout,
	}
}

func (c Config) queueServiceConfig() service.QueueServiceConfig {
	cfg := service.DefaultQueueServiceConfig()
	cfg.ProfileID = c.ProfileID
	cfg.LoadRetries = c.LoadRetries
	cfg.LoadRetryDelay = c.LoadRetryDelay
	return cfg
}

func (c Config) imageLoaderConfig() service.ImageLoaderConfig {
	cfg := service.DefaultImageLoaderConfig()
	cfg.Workers = c.ImageWorkers
	cfg.ShutdownTimeout = c.ImageShutdownTimeout
	return cfg
}

func (c Config) memoryMonitorConfig() service.MemoryMonitorConfig {
	cfg := service.DefaultMemoryMonitorConfig()
	cfg.Interval = c.MemorySampleInterval
	cfg.HighThreshold = c.MemoryHighThreshold
	return cfg
}
