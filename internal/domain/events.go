// Package domain defines events for the event-driven architecture.
// Services publish these on the event bus instead of calling back into their consumers.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Queue events
	EventQueueChanged       EventType = "queue.changed"
	EventRepeatModeChanged  EventType = "queue.repeat_changed"
	EventShuffleToggled     EventType = "queue.shuffle_toggled"
	EventQueueCleared       EventType = "queue.cleared"
	EventQueuePersistFailed EventType = "queue.persist_failed"

	// Playback engine events consumed by the queue
	EventTrackCompleted EventType = "track.completed"

	// System events
	EventMemoryPressureChanged EventType = "memory.pressure_changed"
	EventImageLoadFailed       EventType = "image.load_failed"

	// Library events
	EventLibraryScanned EventType = "library.scanned"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// QueueChangedEvent is published after every queue mutation.
//
// IsShuffleOperation is true when the composition or order changed but the
// current track stayed the same, so listeners can refresh the list without
// restarting playback.
type QueueChangedEvent struct {
	baseEvent
	CurrentTrack       *QueuedTrack // nil when the queue is empty
	Queue              []QueuedTrack
	CurrentIndex       int
	IsShuffleOperation bool
}

// Type returns the event type.
func (e QueueChangedEvent) Type() EventType {
	return EventQueueChanged
}

// NewQueueChangedEvent creates a new QueueChangedEvent.
func NewQueueChangedEvent(current *QueuedTrack, queue []QueuedTrack, index int, shuffleOp bool) QueueChangedEvent {
	return QueueChangedEvent{
		baseEvent:          newBaseEvent(),
		CurrentTrack:       current,
		Queue:              queue,
		CurrentIndex:       index,
		IsShuffleOperation: shuffleOp,
	}
}

// RepeatModeChangedEvent is published when the repeat mode changes.
type RepeatModeChangedEvent struct {
	baseEvent
	Mode RepeatMode
}

// Type returns the event type.
func (e RepeatModeChangedEvent) Type() EventType {
	return EventRepeatModeChanged
}

// NewRepeatModeChangedEvent creates a new RepeatModeChangedEvent.
func NewRepeatModeChangedEvent(mode RepeatMode) RepeatModeChangedEvent {
	return RepeatModeChangedEvent{
		baseEvent: newBaseEvent(),
		Mode:      mode,
	}
}

// ShuffleToggledEvent is published when shuffle is switched on or off.
type ShuffleToggledEvent struct {
	baseEvent
	Enabled bool
}

// Type returns the event type.
func (e ShuffleToggledEvent) Type() EventType {
	return EventShuffleToggled
}

// NewShuffleToggledEvent creates a new ShuffleToggledEvent.
func NewShuffleToggledEvent(enabled bool) ShuffleToggledEvent {
	return ShuffleToggledEvent{
		baseEvent: newBaseEvent(),
		Enabled:   enabled,
	}
}

// QueueClearedEvent is published after the queue was emptied.
type QueueClearedEvent struct {
	baseEvent
	QueueID QueueID
}

// Type returns the event type.
func (e QueueClearedEvent) Type() EventType {
	return EventQueueCleared
}

// NewQueueClearedEvent creates a new QueueClearedEvent.
func NewQueueClearedEvent(id QueueID) QueueClearedEvent {
	return QueueClearedEvent{
		baseEvent: newBaseEvent(),
		QueueID:   id,
	}
}

// QueuePersistFailedEvent is published when a background write of the queue failed.
// The in-memory queue is unaffected.
type QueuePersistFailedEvent struct {
	baseEvent
	Op  string
	Err error
}

// Type returns the event type.
func (e QueuePersistFailedEvent) Type() EventType {
	return EventQueuePersistFailed
}

// NewQueuePersistFailedEvent creates a new QueuePersistFailedEvent.
func NewQueuePersistFailedEvent(op string, err error) QueuePersistFailedEvent {
	return QueuePersistFailedEvent{
		baseEvent: newBaseEvent(),
		Op:        op,
		Err:       err,
	}
}

// TrackCompletedEvent is published by the playback engine when a track finished naturally.
type TrackCompletedEvent struct {
	baseEvent
	Track MusicTrack
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track MusicTrack) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// MemoryPressureChangedEvent is published on every pressure state transition.
type MemoryPressureChangedEvent struct {
	baseEvent
	State       PressureState
	LoadPercent float64
}

// Type returns the event type.
func (e MemoryPressureChangedEvent) Type() EventType {
	return EventMemoryPressureChanged
}

// NewMemoryPressureChangedEvent creates a new MemoryPressureChangedEvent.
func NewMemoryPressureChangedEvent(state PressureState, load float64) MemoryPressureChangedEvent {
	return MemoryPressureChangedEvent{
		baseEvent:   newBaseEvent(),
		State:       state,
		LoadPercent: load,
	}
}

// ImageLoadFailedEvent is published when decoding an image failed.
type ImageLoadFailedEvent struct {
	baseEvent
	Path string
	Err  error
}

// Type returns the event type.
func (e ImageLoadFailedEvent) Type() EventType {
	return EventImageLoadFailed
}

// NewImageLoadFailedEvent creates a new ImageLoadFailedEvent.
func NewImageLoadFailedEvent(path string, err error) ImageLoadFailedEvent {
	return ImageLoadFailedEvent{
		baseEvent: newBaseEvent(),
		Path:      path,
		Err:       err,
	}
}

// LibraryScannedEvent is published when a library scan finished and its
// tracks were written to the catalog.
type LibraryScannedEvent struct {
	baseEvent
	Root    string
	Tracks  []MusicTrack
	Skipped int
}

// Type returns the event type.
func (e LibraryScannedEvent) Type() EventType {
	return EventLibraryScanned
}

// NewLibraryScannedEvent creates a new LibraryScannedEvent.
func NewLibraryScannedEvent(root string, tracks []MusicTrack, skipped int) LibraryScannedEvent {
	return LibraryScannedEvent{
		baseEvent: newBaseEvent(),
		Root:      root,
		Tracks:    tracks,
		Skipped:   skipped,
	}
}
