// Package domain contains core business models and logic with no infrastructure dependencies.
// This package defines the fundamental entities of the GoTune playback queue.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoIndex marks the absence of a queue position.
const NoIndex = -1

// MusicTrack is a catalog entry for a single audio file.
type MusicTrack struct {
	// ID is the catalog identifier of the track
	ID string `json:"id"`

	// FilePath is the absolute path to the audio file
	FilePath string `json:"file_path"`

	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`

	// Duration is the total length of the track
	Duration time.Duration `json:"duration"`

	// ArtworkPath points to a cover image or to an audio file carrying embedded art
	ArtworkPath string `json:"artwork_path,omitempty"`

	// PlayCount is the number of times the track became current
	PlayCount int `json:"play_count"`
}

// QueuedTrack is one entry of the playback queue.
//
// The same catalog track may appear several times in a queue, so each entry
// carries its own InstanceID. Entries are compared by InstanceID, never by
// pointer identity.
type QueuedTrack struct {
	InstanceID string
	Track      MusicTrack

	// Position is the index of the entry in the list that holds it
	Position int

	// OriginalPosition is the index of the entry in the unshuffled order,
	// or NoIndex while the queue is not shuffled
	OriginalPosition int
}

// NewQueuedTrack wraps a catalog track in a fresh queue entry.
func NewQueuedTrack(track MusicTrack, position int) QueuedTrack {
	return QueuedTrack{
		InstanceID:       uuid.NewString(),
		Track:            track,
		Position:         position,
		OriginalPosition: NoIndex,
	}
}

// NewQueuedTracks wraps tracks in fresh queue entries numbered from zero.
func NewQueuedTracks(tracks []MusicTrack) []QueuedTrack {
	out := make([]QueuedTrack, len(tracks))
	for i, t := range tracks {
		out[i] = NewQueuedTrack(t, i)
	}
	return out
}

// RepeatMode controls how navigation behaves at the ends of the queue.
type RepeatMode int

const (
	// RepeatNone stops at either end of the queue
	RepeatNone RepeatMode = iota
	// RepeatAll wraps around at either end
	RepeatAll
	// RepeatOne replays the current track; the playback engine handles the replay
	RepeatOne
)

// String returns the persisted name of the mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "none"
	}
}

// Next returns the mode that follows m in the None, All, One cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatNone
	}
}

// Valid reports whether m is a known mode.
func (m RepeatMode) Valid() bool {
	return m >= RepeatNone && m <= RepeatOne
}

// ParseRepeatMode converts a persisted name back into a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return RepeatNone, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatNone, fmt.Errorf("%w: unknown repeat mode %q", ErrInvalidArgument, s)
	}
}

// NavigationDirection selects the neighbour Advance looks for.
type NavigationDirection int

const (
	DirectionNext NavigationDirection = iota
	DirectionPrevious
)

// QueueSnapshot is a copy of the queue state that callers may keep and modify.
type QueueSnapshot struct {
	NowPlaying    []QueuedTrack
	OriginalOrder []QueuedTrack
	CurrentIndex  int
	Shuffled      bool
	RepeatMode    RepeatMode
	QueueID       QueueID
	ProfileID     ProfileID
}

// CurrentTrack returns the current entry, if any.
func (s QueueSnapshot) CurrentTrack() (QueuedTrack, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.NowPlaying) {
		return QueuedTrack{}, false
	}
	return s.NowPlaying[s.CurrentIndex], true
}

// QueueID identifies a persisted queue. Zero means "not persisted yet".
type QueueID int64

// ProfileID identifies the user profile that owns a queue.
type ProfileID int64

// QueueTrackRow is the persisted form of one queue entry.
type QueueTrackRow struct {
	TrackID  string `json:"track_id"`
	Position int    `json:"position"`

	// OriginalPosition is NoIndex when the queue is not shuffled
	OriginalPosition int `json:"original_position"`
}

// QueueMetadata is the part of a persisted queue that changes without the
// composition changing.
type QueueMetadata struct {
	CurrentPosition int    `json:"current_position"`
	Shuffled        bool   `json:"shuffled"`
	RepeatMode      string `json:"repeat_mode"`
}

// PersistedQueueRecord is the durable form of a queue.
type PersistedQueueRecord struct {
	ID           QueueID         `json:"id"`
	ProfileID    ProfileID       `json:"profile_id"`
	Metadata     QueueMetadata   `json:"metadata"`
	LastModified time.Time       `json:"last_modified"`
	Tracks       []QueueTrackRow `json:"tracks"`
}

// ResolvedRow pairs a persisted row with the catalog track it references.
type ResolvedRow struct {
	Row   QueueTrackRow
	Track MusicTrack
}

// PlayStat is the play history of a single track.
type PlayStat struct {
	TrackID    string    `json:"track_id"`
	PlayCount  int       `json:"play_count"`
	LastPlayed time.Time `json:"last_played"`
}

// PressureState is the system memory state reported by the pressure monitor.
type PressureState int

const (
	PressureNormal PressureState = iota
	PressureHigh
)

// String returns a readable name for the state.
func (p PressureState) String() string {
	if p == PressureHigh {
		return "high"
	}
	return "normal"
}

// ImagePriority orders pending image loads. Lower values run first.
type ImagePriority int

const (
	ImagePriorityTop        ImagePriority = 0
	ImagePriorityVisible    ImagePriority = 1
	ImagePriorityBackground ImagePriority = 10
)
