package prefs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

const (
	queueKeyPrefix   = "queue."
	queueNextIDKey   = "queue._next_id"
	queueCurrentKey  = "queue._current."
	queueRepoName    = "queue"
	queueNotSavedMsg = "queue not found"
)

// QueueRepository implements ports.QueueRepository using Fyne preferences.
// Each queue is stored as JSON under "queue.<id>"; the current queue of a
// profile is referenced from "queue._current.<profile>".
//
// Thread-safe: All operations protected by sync.RWMutex.
type QueueRepository struct {
	prefs  fyne.Preferences
	mu     sync.RWMutex
	logger *slog.Logger
	now    func() time.Time
}

// NewQueueRepository creates a new queue repository.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewQueueRepository(prefs fyne.Preferences, logger *slog.Logger) *QueueRepository {
	return &QueueRepository{
		prefs:  prefs,
		logger: logger,
		now:    time.Now,
	}
}

// GetCurrentQueue returns the current queue of a profile, or nil if it has none.
func (r *QueueRepository) GetCurrentQueue(ctx context.Context, profileID domain.ProfileID) (*domain.PersistedQueueRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id := domain.QueueID(r.prefs.Int(currentKey(profileID)))
	if id == 0 {
		return nil, nil
	}

	rec, ok, err := r.loadLocked(id)
	if err != nil {
		return nil, domain.NewRepositoryError("get_current", queueRepoName, "corrupted queue record", err)
	}
	if !ok {
		// The pointer outlived its record; treat the profile as having no queue.
		r.logger.Warn("current queue record missing",
			slog.Int64("profile_id", int64(profileID)),
			slog.Int64("queue_id", int64(id)))
		return nil, nil
	}
	return &rec, nil
}

// CreateQueue stores record as a new queue and makes it current for its profile.
func (r *QueueRepository) CreateQueue(ctx context.Context, record domain.PersistedQueueRecord) (domain.QueueID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.QueueID(r.prefs.Int(queueNextIDKey) + 1)
	r.prefs.SetInt(queueNextIDKey, int(id))

	record.ID = id
	record.LastModified = r.now()
	if record.Tracks == nil {
		record.Tracks = []domain.QueueTrackRow{}
	}
	if err := writeJSON(r.prefs, queueKey(id), record); err != nil {
		return 0, domain.NewRepositoryError("create", queueRepoName, "failed to marshal queue", err)
	}
	r.prefs.SetInt(currentKey(record.ProfileID), int(id))

	return id, nil
}

// UpdateQueueMetadata overwrites the position, shuffle flag and repeat mode of a queue.
func (r *QueueRepository) UpdateQueueMetadata(ctx context.Context, id domain.QueueID, meta domain.QueueMetadata) error {
	return r.modify(ctx, "update_metadata", id, func(rec *domain.PersistedQueueRecord) {
		rec.Metadata = meta
	})
}

// ReplaceQueueTracks replaces every row of a queue.
func (r *QueueRepository) ReplaceQueueTracks(ctx context.Context, id domain.QueueID, rows []domain.QueueTrackRow) error {
	return r.modify(ctx, "replace_tracks", id, func(rec *domain.PersistedQueueRecord) {
		rec.Tracks = append([]domain.QueueTrackRow{}, rows...)
	})
}

// DeleteQueue removes a queue. Unknown ids are ignored.
func (r *QueueRepository) DeleteQueue(ctx context.Context, id domain.QueueID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok, err := r.loadLocked(id)
	r.prefs.RemoveValue(queueKey(id))
	if err != nil || !ok {
		return nil
	}
	if domain.QueueID(r.prefs.Int(currentKey(rec.ProfileID))) == id {
		r.prefs.RemoveValue(currentKey(rec.ProfileID))
	}
	return nil
}

func (r *QueueRepository) modify(ctx context.Context, op string, id domain.QueueID, apply func(*domain.PersistedQueueRecord)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok, err := r.loadLocked(id)
	if err != nil {
		return domain.NewRepositoryError(op, queueRepoName, "corrupted queue record", err)
	}
	if !ok {
		return domain.NewRepositoryError(op, queueRepoName, queueNotSavedMsg, domain.ErrQueueNotFound)
	}

	apply(&rec)
	rec.LastModified = r.now()
	if err := writeJSON(r.prefs, queueKey(id), rec); err != nil {
		return domain.NewRepositoryError(op, queueRepoName, "failed to marshal queue", err)
	}
	return nil
}

// loadLocked reads a queue record. Must be called with lock held.
func (r *QueueRepository) loadLocked(id domain.QueueID) (domain.PersistedQueueRecord, bool, error) {
	var rec domain.PersistedQueueRecord
	ok, err := readJSON(r.prefs, queueKey(id), &rec)
	return rec, ok, err
}

func queueKey(id domain.QueueID) string {
	return queueKeyPrefix + itoa(int64(id))
}

func currentKey(profileID domain.ProfileID) string {
	return queueCurrentKey + itoa(int64(profileID))
}

// Verify interface implementation
var _ ports.QueueRepository = (*QueueRepository)(nil)
