// Package file provides a JSON file backed store for queues, the track
// catalog and play statistics.
package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// DefaultFileName is the store file name inside the data directory.
const DefaultFileName = "gotune-queue.json"

const documentVersion = 1

// document is the on-disk layout.
type document struct {
	Version     int                                            `json:"version"`
	NextQueueID domain.QueueID                                 `json:"next_queue_id"`
	Current     map[domain.ProfileID]domain.QueueID            `json:"current"`
	Queues      map[domain.QueueID]domain.PersistedQueueRecord `json:"queues"`
	Tracks      map[string]domain.MusicTrack                   `json:"tracks"`
	Stats       map[string]domain.PlayStat                     `json:"stats"`
}

func newDocument() document {
	return document{
		Version: documentVersion,
		Current: make(map[domain.ProfileID]domain.QueueID),
		Queues:  make(map[domain.QueueID]domain.PersistedQueueRecord),
		Tracks:  make(map[string]domain.MusicTrack),
		Stats:   make(map[string]domain.PlayStat),
	}
}

func (d document) clone() document {
	return document{
		Version:     d.Version,
		NextQueueID: d.NextQueueID,
		Current:     maps.Clone(d.Current),
		Queues:      maps.Clone(d.Queues),
		Tracks:      maps.Clone(d.Tracks),
		Stats:       maps.Clone(d.Stats),
	}
}

// Store keeps the whole document in memory and rewrites the file after every
// change. Writes go to a temporary file that is renamed over the old one, so
// readers never observe a partial document.
//
// Thread-safe: All operations protected by sync.RWMutex.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu  sync.RWMutex
	doc document
}

// Open loads the store at path. A missing file yields an empty store; the
// file is created on the first write.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Reload replaces the in-memory document with the file contents.
func (s *Store) Reload() error {
	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return document{}, domain.NewRepositoryError("open", "file", "failed to read store", err)
	}

	doc := newDocument()
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, domain.NewRepositoryError("open", "file", "corrupted store "+path, err)
	}
	if doc.Version > documentVersion {
		return document{}, domain.NewRepositoryError("open", "file",
			fmt.Sprintf("store version %d is newer than supported version %d", doc.Version, documentVersion), nil)
	}
	// Maps missing from older files decode as nil.
	doc.Current = lo.Ternary(doc.Current == nil, map[domain.ProfileID]domain.QueueID{}, doc.Current)
	doc.Queues = lo.Ternary(doc.Queues == nil, map[domain.QueueID]domain.PersistedQueueRecord{}, doc.Queues)
	doc.Tracks = lo.Ternary(doc.Tracks == nil, map[string]domain.MusicTrack{}, doc.Tracks)
	doc.Stats = lo.Ternary(doc.Stats == nil, map[string]domain.PlayStat{}, doc.Stats)
	doc.Version = documentVersion
	return doc, nil
}

// update applies fn to the document and writes it out. The in-memory
// document is rolled back if fn or the write fails.
func (s *Store) update(ctx context.Context, op, repo string, fn func(*document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.clone()
	if err := fn(&s.doc); err != nil {
		s.doc = prev
		return err
	}
	if err := s.writeLocked(); err != nil {
		s.doc = prev
		return domain.NewRepositoryError(op, repo, "failed to write store", err)
	}
	return nil
}

// writeLocked must be called with the write lock held.
func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// GetCurrentQueue returns the current queue of a profile, or nil if it has none.
func (s *Store) GetCurrentQueue(ctx context.Context, profileID domain.ProfileID) (*domain.PersistedQueueRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.doc.Current[profileID]
	if !ok {
		return nil, nil
	}
	rec, ok := s.doc.Queues[id]
	if !ok {
		s.logger.Warn("current queue record missing",
			slog.Int64("profile_id", int64(profileID)),
			slog.Int64("queue_id", int64(id)))
		return nil, nil
	}
	rec.Tracks = slices.Clone(rec.Tracks)
	return &rec, nil
}

// CreateQueue stores record as a new queue and makes it current for its profile.
func (s *Store) CreateQueue(ctx context.Context, record domain.PersistedQueueRecord) (domain.QueueID, error) {
	var id domain.QueueID
	err := s.update(ctx, "create", "queue", func(d *document) error {
		d.NextQueueID++
		id = d.NextQueueID
		record.ID = id
		record.LastModified = s.now()
		record.Tracks = append([]domain.QueueTrackRow{}, record.Tracks...)
		d.Queues[id] = record
		d.Current[record.ProfileID] = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateQueueMetadata overwrites the position, shuffle flag and repeat mode of a queue.
func (s *Store) UpdateQueueMetadata(ctx context.Context, id domain.QueueID, meta domain.QueueMetadata) error {
	return s.modifyQueue(ctx, "update_metadata", id, func(rec *domain.PersistedQueueRecord) {
		rec.Metadata = meta
	})
}

// ReplaceQueueTracks replaces every row of a queue.
func (s *Store) ReplaceQueueTracks(ctx context.Context, id domain.QueueID, rows []domain.QueueTrackRow) error {
	return s.modifyQueue(ctx, "replace_tracks", id, func(rec *domain.PersistedQueueRecord) {
		rec.Tracks = append([]domain.QueueTrackRow{}, rows...)
	})
}

func (s *Store) modifyQueue(ctx context.Context, op string, id domain.QueueID, apply func(*domain.PersistedQueueRecord)) error {
	return s.update(ctx, op, "queue", func(d *document) error {
		rec, ok := d.Queues[id]
		if !ok {
			return domain.NewRepositoryError(op, "queue", "queue not found", domain.ErrQueueNotFound)
		}
		apply(&rec)
		rec.LastModified = s.now()
		d.Queues[id] = rec
		return nil
	})
}

// DeleteQueue removes a queue. Unknown ids are ignored.
func (s *Store) DeleteQueue(ctx context.Context, id domain.QueueID) error {
	s.mu.RLock()
	_, exists := s.doc.Queues[id]
	s.mu.RUnlock()
	if !exists {
		return ctx.Err()
	}

	return s.update(ctx, "delete", "queue", func(d *document) error {
		rec, ok := d.Queues[id]
		if !ok {
			return nil
		}
		delete(d.Queues, id)
		if d.Current[rec.ProfileID] == id {
			delete(d.Current, rec.ProfileID)
		}
		return nil
	})
}

// PutTracks inserts or replaces catalog tracks by ID.
func (s *Store) PutTracks(ctx context.Context, tracks ...domain.MusicTrack) error {
	for _, t := range tracks {
		if t.ID == "" {
			return domain.NewValidationError("ID", t.ID, "track id is required")
		}
	}
	return s.update(ctx, "put", "catalog", func(d *document) error {
		for _, t := range tracks {
			d.Tracks[t.ID] = t
		}
		return nil
	})
}

// Tracks returns every catalog track sorted by ID.
func (s *Store) Tracks(ctx context.Context) ([]domain.MusicTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks := lo.Values(s.doc.Tracks)
	slices.SortFunc(tracks, func(a, b domain.MusicTrack) int { return cmp.Compare(a.ID, b.ID) })
	return tracks, nil
}

// ResolveTracks hydrates rows in order, dropping rows whose track is gone.
func (s *Store) ResolveTracks(ctx context.Context, rows []domain.QueueTrackRow) ([]domain.ResolvedRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.FilterMap(rows, func(row domain.QueueTrackRow, _ int) (domain.ResolvedRow, bool) {
		t, ok := s.doc.Tracks[row.TrackID]
		return domain.ResolvedRow{Row: row, Track: t}, ok
	}), nil
}

// RecordPlay stamps the track as played now.
func (s *Store) RecordPlay(ctx context.Context, trackID string) error {
	return s.update(ctx, "record_play", "stats", func(d *document) error {
		stat := statOf(d, trackID)
		stat.LastPlayed = s.now()
		d.Stats[trackID] = stat
		return nil
	})
}

// IncrementPlayCount stores newCount as the track's play count.
func (s *Store) IncrementPlayCount(ctx context.Context, trackID string, newCount int) error {
	return s.update(ctx, "increment_play_count", "stats", func(d *document) error {
		stat := statOf(d, trackID)
		stat.PlayCount = newCount
		d.Stats[trackID] = stat
		if t, ok := d.Tracks[trackID]; ok {
			t.PlayCount = newCount
			d.Tracks[trackID] = t
		}
		return nil
	})
}

// Stats returns every play statistic, most played first.
func (s *Store) Stats() []domain.PlayStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := lo.Values(s.doc.Stats)
	slices.SortFunc(stats, func(a, b domain.PlayStat) int {
		if c := cmp.Compare(b.PlayCount, a.PlayCount); c != 0 {
			return c
		}
		return cmp.Compare(a.TrackID, b.TrackID)
	})
	return stats
}

func statOf(d *document, trackID string) domain.PlayStat {
	stat, ok := d.Stats[trackID]
	if !ok {
		stat.TrackID = trackID
	}
	return stat
}

// Verify interface implementation
var (
	_ ports.QueueRepository = (*Store)(nil)
	_ ports.TrackCatalog    = (*Store)(nil)
	_ ports.PlayStatsSink   = (*Store)(nil)
)
