// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
)

// QueueRepository stores queue composition and metadata.
//
// Thread-safety: Implementations must be safe to call from a background
// goroutine while other goroutines read.
type QueueRepository interface {
	// GetCurrentQueue returns the active queue of a profile.
	// If the profile has no queue, returns (nil, nil).
	GetCurrentQueue(ctx context.Context, profileID domain.ProfileID) (*domain.PersistedQueueRecord, error)

	// CreateQueue stores a new queue, makes it the profile's current queue and
	// returns its id. The ID field of record is ignored.
	CreateQueue(ctx context.Context, record domain.PersistedQueueRecord) (domain.QueueID, error)

	// UpdateQueueMetadata overwrites position, shuffle flag and repeat mode.
	//
	// Returns domain.ErrQueueNotFound if the queue does not exist.
	UpdateQueueMetadata(ctx context.Context, id domain.QueueID, meta domain.QueueMetadata) error

	// ReplaceQueueTracks replaces every track row of the queue. An empty
	// slice removes all rows but keeps the queue itself.
	//
	// Returns domain.ErrQueueNotFound if the queue does not exist.
	ReplaceQueueTracks(ctx context.Context, id domain.QueueID, rows []domain.QueueTrackRow) error

	// DeleteQueue removes the queue and its rows. Deleting an unknown id is a no-op.
	DeleteQueue(ctx context.Context, id domain.QueueID) error
}

// TrackResolver hydrates persisted rows into catalog tracks.
type TrackResolver interface {
	// ResolveTracks returns the rows in the order requested. Rows whose track
	// no longer exists in the catalog are dropped without error.
	ResolveTracks(ctx context.Context, rows []domain.QueueTrackRow) ([]domain.ResolvedRow, error)
}

// TrackCatalog is a TrackResolver that can also be filled.
type TrackCatalog interface {
	TrackResolver

	// PutTracks inserts or replaces catalog entries by ID.
	PutTracks(ctx context.Context, tracks ...domain.MusicTrack) error

	// Tracks returns every catalog entry sorted by ID.
	Tracks(ctx context.Context) ([]domain.MusicTrack, error)
}

// PlayStatsSink records play history. Callers do not depend on the outcome;
// errors are only logged.
type PlayStatsSink interface {
	RecordPlay(ctx context.Context, trackID string) error
	IncrementPlayCount(ctx context.Context, trackID string, newCount int) error
}

// MetadataReader reads catalog metadata from an audio file.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, path string) (domain.MusicTrack, error)
}
