package testutil

import (
	"fmt"
	"time"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
)

// Tracks returns n catalog tracks with ids "t0" .. "t<n-1>".
func Tracks(n int) []domain.MusicTrack {
	out := make([]domain.MusicTrack, n)
	for i := range out {
		out[i] = Track(fmt.Sprintf("t%d", i))
	}
	return out
}

// Track returns a catalog track with the given id and derived metadata.
func Track(id string) domain.MusicTrack {
	return domain.MusicTrack{
		ID:       id,
		FilePath: "/music/" + id + ".mp3",
		Title:    "Song " + id,
		Artist:   "Artist",
		Album:    "Album",
		Duration: 3 * time.Minute,
	}
}

// TrackIDs extracts the catalog ids of queue entries, in order.
func TrackIDs(queue []domain.QueuedTrack) []string {
	out := make([]string, len(queue))
	for i, q := range queue {
		out[i] = q.Track.ID
	}
	return out
}
