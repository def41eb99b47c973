package prefs

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

const (
	trackKeyPrefix = "track."
	trackIDsKey    = "track._ids"
)

// CatalogRepository implements ports.TrackCatalog using Fyne preferences.
// Tracks are stored with keys like "track.<id>".
//
// Thread-safe: All operations protected by sync.RWMutex.
type CatalogRepository struct {
	prefs  fyne.Preferences
	mu     sync.RWMutex
	logger *slog.Logger
	ids    idIndex
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(prefs fyne.Preferences, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{
		prefs:  prefs,
		logger: logger,
		ids:    idIndex{prefs: prefs, key: trackIDsKey},
	}
}

// PutTracks inserts or replaces tracks by ID.
func (r *CatalogRepository) PutTracks(ctx context.Context, tracks ...domain.MusicTrack) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tracks {
		if t.ID == "" {
			return domain.NewValidationError("ID", t.ID, "track id is required")
		}
		if err := writeJSON(r.prefs, trackKeyPrefix+t.ID, t); err != nil {
			return domain.NewRepositoryError("put", "catalog", "failed to marshal track", err)
		}
		if err := r.ids.add(t.ID); err != nil {
			return domain.NewRepositoryError("put", "catalog", "failed to update track index", err)
		}
	}
	return nil
}

// Tracks returns every stored track sorted by ID. Corrupted entries are skipped.
func (r *CatalogRepository) Tracks(ctx context.Context) ([]domain.MusicTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, err := r.ids.load()
	if err != nil {
		return nil, domain.NewRepositoryError("list", "catalog", "failed to unmarshal track index", err)
	}

	tracks := lo.FilterMap(ids, func(id string, _ int) (domain.MusicTrack, bool) {
		return r.trackLocked(id)
	})
	slices.SortFunc(tracks, func(a, b domain.MusicTrack) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return tracks, nil
}

// ResolveTracks hydrates rows in order, dropping rows whose track is gone.
func (r *CatalogRepository) ResolveTracks(ctx context.Context, rows []domain.QueueTrackRow) ([]domain.ResolvedRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(rows, func(row domain.QueueTrackRow, _ int) (domain.ResolvedRow, bool) {
		t, ok := r.trackLocked(row.TrackID)
		return domain.ResolvedRow{Row: row, Track: t}, ok
	}), nil
}

// trackLocked reads one track. Must be called with lock held.
func (r *CatalogRepository) trackLocked(id string) (domain.MusicTrack, bool) {
	var t domain.MusicTrack
	ok, err := readJSON(r.prefs, trackKeyPrefix+id, &t)
	if err != nil {
		r.logger.Warn("track corrupted", slog.String("id", id), slog.Any("error", err))
		return t, false
	}
	return t, ok
}

// Verify interface implementation
var _ ports.TrackCatalog = (*CatalogRepository)(nil)
