package prefs

import (
	"context"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
	"github.com/tejashwikalptaru/gotune-queue/internal/testutil"
)

// newTestPrefs returns Fyne's in-memory preferences backend.
func newTestPrefs() fyne.Preferences {
	return test.NewApp().Preferences()
}

func sampleRecord(profile domain.ProfileID) domain.PersistedQueueRecord {
	return domain.PersistedQueueRecord{
		ProfileID: profile,
		Metadata:  domain.QueueMetadata{CurrentPosition: 1, RepeatMode: "all"},
		Tracks: []domain.QueueTrackRow{
			{TrackID: "t0", Position: 0, OriginalPosition: domain.NoIndex},
			{TrackID: "t1", Position: 1, OriginalPosition: domain.NoIndex},
		},
	}
}

func TestQueueRepository_NoQueue(t *testing.T) {
	repo := NewQueueRepository(newTestPrefs(), logger.NewTestLogger())

	rec, err := repo.GetCurrentQueue(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestQueueRepository_CreateAndGet(t *testing.T) {
	repo := NewQueueRepository(newTestPrefs(), logger.NewTestLogger())
	ctx := context.Background()

	id, err := repo.CreateQueue(ctx, sampleRecord(1))
	require.NoError(t, err)
	assert.Equal(t, domain.QueueID(1), id)

	rec, err := repo.GetCurrentQueue(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, domain.ProfileID(1), rec.ProfileID)
	assert.Equal(t, 1, rec.Metadata.CurrentPosition)
	assert.Equal(t, "all", rec.Metadata.RepeatMode)
	assert.Len(t, rec.Tracks, 2)
	assert.False(t, rec.LastModified.IsZero())

	other, err := repo.GetCurrentQueue(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, other, "queues are per profile")

	second, err := repo.CreateQueue(ctx, sampleRecord(1))
	require.NoError(t, err)
	assert.Equal(t, domain.QueueID(2), second)
	rec, err = repo.GetCurrentQueue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second, rec.ID, "a new queue becomes current")
}

func TestQueueRepository_UpdateMetadataAndTracks(t *testing.T) {
	repo := NewQueueRepository(newTestPrefs(), logger.NewTestLogger())
	ctx := context.Background()

	id, err := repo.CreateQueue(ctx, sampleRecord(1))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateQueueMetadata(ctx, id, domain.QueueMetadata{
		CurrentPosition: 0,
		Shuffled:        true,
		RepeatMode:      "one",
	}))
	require.NoError(t, repo.ReplaceQueueTracks(ctx, id, []domain.QueueTrackRow{
		{TrackID: "t1", Position: 0, OriginalPosition: 1},
		{TrackID: "t0", Position: 1, OriginalPosition: 0},
		{TrackID: "t2", Position: 2, OriginalPosition: 2},
	}))

	rec, err := repo.GetCurrentQueue(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Metadata.Shuffled)
	assert.Equal(t, "one", rec.Metadata.RepeatMode)
	assert.Equal(t, []string{"t1", "t0", "t2"}, []string{rec.Tracks[0].TrackID, rec.Tracks[1].TrackID, rec.Tracks[2].TrackID})

	require.NoError(t, repo.ReplaceQueueTracks(ctx, id, nil))
	rec, err = repo.GetCurrentQueue(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec, "emptying the rows keeps the queue")
	assert.Empty(t, rec.Tracks)
}

func TestQueueRepository_UnknownQueue(t *testing.T) {
	repo := NewQueueRepository(newTestPrefs(), logger.NewTestLogger())
	ctx := context.Background()

	err := repo.UpdateQueueMetadata(ctx, 42, domain.QueueMetadata{})
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)

	err = repo.ReplaceQueueTracks(ctx, 42, nil)
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)

	var repoErr *domain.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "replace_tracks", repoErr.Op)

	assert.NoError(t, repo.DeleteQueue(ctx, 42))
}

func TestQueueRepository_Delete(t *testing.T) {
	repo := NewQueueRepository(newTestPrefs(), logger.NewTestLogger())
	ctx := context.Background()

	id, err := repo.CreateQueue(ctx, sampleRecord(3))
	require.NoError(t, err)
	require.NoError(t, repo.DeleteQueue(ctx, id))

	rec, err := repo.GetCurrentQueue(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, repo.UpdateQueueMetadata(ctx, id, domain.QueueMetadata{}), domain.ErrQueueNotFound)
}

func TestQueueRepository_CorruptedRecord(t *testing.T) {
	prefs := newTestPrefs()
	repo := NewQueueRepository(prefs, logger.NewTestLogger())
	ctx := context.Background()

	id, err := repo.CreateQueue(ctx, sampleRecord(1))
	require.NoError(t, err)
	prefs.SetString(queueKey(id), "{not json")

	_, err = repo.GetCurrentQueue(ctx, 1)
	var repoErr *domain.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "get_current", repoErr.Op)
}

func TestQueueRepository_CancelledContext(t *testing.T) {
	repo := NewQueueRepository(newTestPrefs(), logger.NewTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.CreateQueue(ctx, sampleRecord(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalogRepository_PutAndResolve(t *testing.T) {
	repo := NewCatalogRepository(newTestPrefs(), logger.NewTestLogger())
	ctx := context.Background()

	require.NoError(t, repo.PutTracks(ctx, testutil.Tracks(3)...))
	updated := testutil.Track("t1")
	updated.Title = "Renamed"
	require.NoError(t, repo.PutTracks(ctx, updated))

	all, err := repo.Tracks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Renamed", all[1].Title)

	resolved, err := repo.ResolveTracks(ctx, []domain.QueueTrackRow{
		{TrackID: "t2", Position: 0},
		{TrackID: "gone", Position: 1},
		{TrackID: "t0", Position: 2},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "t2", resolved[0].Track.ID)
	assert.Equal(t, 0, resolved[0].Row.Position)
	assert.Equal(t, "t0", resolved[1].Track.ID)
	assert.Equal(t, 2, resolved[1].Row.Position)
}

func TestCatalogRepository_RejectsEmptyID(t *testing.T) {
	repo := NewCatalogRepository(newTestPrefs(), logger.NewTestLogger())
	err := repo.PutTracks(context.Background(), domain.MusicTrack{Title: "nameless"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStatsRepository(t *testing.T) {
	repo := NewStatsRepository(newTestPrefs())
	played := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return played }
	ctx := context.Background()

	require.NoError(t, repo.RecordPlay(ctx, "t0"))
	require.NoError(t, repo.IncrementPlayCount(ctx, "t0", 1))
	require.NoError(t, repo.RecordPlay(ctx, "t1"))
	require.NoError(t, repo.IncrementPlayCount(ctx, "t1", 4))

	stat := repo.Stat("t0")
	assert.Equal(t, 1, stat.PlayCount)
	assert.True(t, played.Equal(stat.LastPlayed))
	assert.Zero(t, repo.Stat("never").PlayCount)

	stats := repo.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "t1", stats[0].TrackID)
	assert.Equal(t, []string{"t1", "t0"}, repo.Recent())

	repo.Clear()
	assert.Empty(t, repo.Stats())
	assert.Empty(t, repo.Recent())
}

func TestStatsRepository_RecentIsCapped(t *testing.T) {
	repo := NewStatsRepository(newTestPrefs())
	ctx := context.Background()

	for range RecentLimit + 5 {
		require.NoError(t, repo.RecordPlay(ctx, "loop"))
	}
	assert.Len(t, repo.Recent(), RecentLimit)
}
