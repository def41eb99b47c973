package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

var supportedAudioExts = []string{
	".mp3",
	".ogg", ".oga", ".opus",
	".flac",
	".m4a", ".m4b", ".mp4", ".aac",
	".wav", ".aif", ".aiff",
	".wma",
}

// LibraryService scans folders for audio files and adds what it finds to the
// track catalog. Only one scan runs at a time.
type LibraryService struct {
	logger  *slog.Logger
	reader  ports.MetadataReader
	catalog ports.TrackCatalog
	bus     ports.EventBus

	mu         sync.Mutex
	scanning   bool
	cancelScan context.CancelFunc
}

// NewLibraryService creates a new library service. bus may be nil.
func NewLibraryService(
	logger *slog.Logger,
	reader ports.MetadataReader,
	catalog ports.TrackCatalog,
	bus ports.EventBus,
) *LibraryService {
	return &LibraryService{
		logger:  logger,
		reader:  reader,
		catalog: catalog,
		bus:     bus,
	}
}

// ScanFolder walks root recursively, reads the metadata of every supported
// file and stores the tracks in the catalog. Files that cannot be read are
// skipped. On cancellation nothing is stored and ErrScanCancelled is returned.
func (s *LibraryService) ScanFolder(ctx context.Context, root string) ([]domain.MusicTrack, error) {
	ctx, done, err := s.beginScan(ctx, "scan_folder")
	if err != nil {
		return nil, err
	}
	defer done()

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Debug("skipping unreadable entry", slog.String("path", path), slog.Any("error", err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && s.IsFormatSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrScanCancelled
		}
		return nil, domain.NewServiceError("LibraryService", "scan_folder", "failed to walk "+root, err)
	}

	return s.importFiles(ctx, "scan_folder", root, files)
}

// ScanFiles reads and stores the given files. Unsupported extensions are skipped.
func (s *LibraryService) ScanFiles(ctx context.Context, paths []string) ([]domain.MusicTrack, error) {
	ctx, done, err := s.beginScan(ctx, "scan_files")
	if err != nil {
		return nil, err
	}
	defer done()

	files := lo.Filter(paths, func(p string, _ int) bool {
		return s.IsFormatSupported(p)
	})
	return s.importFiles(ctx, "scan_files", "", files)
}

func (s *LibraryService) beginScan(parent context.Context, op string) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return nil, nil, domain.NewServiceError("LibraryService", op, "scan already in progress", domain.ErrScanInProgress)
	}
	ctx, cancel := context.WithCancel(parent)
	s.scanning = true
	s.cancelScan = cancel

	return ctx, func() {
		cancel()
		s.mu.Lock()
		s.scanning = false
		s.cancelScan = nil
		s.mu.Unlock()
	}, nil
}

func (s *LibraryService) importFiles(ctx context.Context, op, root string, files []string) ([]domain.MusicTrack, error) {
	tracks := make([]domain.MusicTrack, 0, len(files))
	skipped := 0

	for _, path := range files {
		if ctx.Err() != nil {
			return nil, domain.ErrScanCancelled
		}
		track, err := s.reader.ReadMetadata(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrScanCancelled
			}
			s.logger.Debug("skipping unreadable file", slog.String("path", path), slog.Any("error", err))
			skipped++
			continue
		}
		tracks = append(tracks, track)
	}

	if len(tracks) > 0 {
		if err := s.catalog.PutTracks(ctx, tracks...); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, domain.ErrScanCancelled
			}
			return nil, domain.NewServiceError("LibraryService", op, "failed to store tracks", err)
		}
	}

	s.logger.Info("library scan finished",
		slog.String("root", root),
		slog.Int("tracks", len(tracks)),
		slog.Int("skipped", skipped))
	if s.bus != nil {
		s.bus.Publish(domain.NewLibraryScannedEvent(root, tracks, skipped))
	}
	return tracks, nil
}

// CancelScan cancels the running scan. It returns false when no scan is running.
func (s *LibraryService) CancelScan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return false
	}
	s.cancelScan()
	return true
}

// IsScanning reports whether a scan is in progress.
func (s *LibraryService) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// IsFormatSupported checks the file extension, ignoring case.
func (s *LibraryService) IsFormatSupported(path string) bool {
	return lo.Contains(supportedAudioExts, strings.ToLower(filepath.Ext(path)))
}

// SupportedFormats returns the recognised audio extensions.
func (s *LibraryService) SupportedFormats() []string {
	return slices.Clone(supportedAudioExts)
}

// Shutdown cancels any running scan.
func (s *LibraryService) Shutdown() error {
	s.CancelScan()
	return nil
}
