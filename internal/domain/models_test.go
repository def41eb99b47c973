package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatMode_Cycle(t *testing.T) {
	mode := RepeatNone
	mode = mode.Next()
	assert.Equal(t, RepeatAll, mode)
	mode = mode.Next()
	assert.Equal(t, RepeatOne, mode)
	mode = mode.Next()
	assert.Equal(t, RepeatNone, mode)
}

func TestRepeatMode_StringRoundTrip(t *testing.T) {
	for _, mode := range []RepeatMode{RepeatNone, RepeatAll, RepeatOne} {
		parsed, err := ParseRepeatMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
}

func TestParseRepeatMode_Lenient(t *testing.T) {
	mode, err := ParseRepeatMode(" ALL ")
	require.NoError(t, err)
	assert.Equal(t, RepeatAll, mode)

	mode, err = ParseRepeatMode("off")
	require.NoError(t, err)
	assert.Equal(t, RepeatNone, mode)

	mode, err = ParseRepeatMode("")
	require.NoError(t, err)
	assert.Equal(t, RepeatNone, mode)

	_, err = ParseRepeatMode("sometimes")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewQueuedTracks(t *testing.T) {
	tracks := []MusicTrack{{ID: "a"}, {ID: "a"}, {ID: "b"}}
	queued := NewQueuedTracks(tracks)

	require.Len(t, queued, 3)
	seen := map[string]bool{}
	for i, q := range queued {
		assert.Equal(t, i, q.Position)
		assert.Equal(t, NoIndex, q.OriginalPosition)
		assert.NotEmpty(t, q.InstanceID)
		assert.False(t, seen[q.InstanceID], "instance ids must be unique")
		seen[q.InstanceID] = true
	}
	assert.Equal(t, "a", queued[1].Track.ID)
}

func TestQueueSnapshot_CurrentTrack(t *testing.T) {
	snap := QueueSnapshot{CurrentIndex: NoIndex}
	_, ok := snap.CurrentTrack()
	assert.False(t, ok)

	snap.NowPlaying = NewQueuedTracks([]MusicTrack{{ID: "x"}, {ID: "y"}})
	snap.CurrentIndex = 1
	cur, ok := snap.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "y", cur.Track.ID)
}

func TestValidationError_Unwrap(t *testing.T) {
	err := error(NewValidationError("tracks", 0, "must not be empty"))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.False(t, errors.Is(err, ErrInvalidIndex))

	err = NewIndexError("index", 5, 3)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, ErrInvalidIndex))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "index", ve.Field)
}

func TestServiceError_Unwrap(t *testing.T) {
	err := NewServiceError("QueueService", "Load", "giving up", ErrQueueLoadFailed)
	assert.ErrorIs(t, err, ErrQueueLoadFailed)
	assert.Contains(t, err.Error(), "QueueService.Load")
}
