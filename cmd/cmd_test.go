package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/repository/file"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
	"github.com/tejashwikalptaru/gotune-queue/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func seedStore(t *testing.T, dir string, profile domain.ProfileID) domain.QueueID {
	t.Helper()
	store, err := file.Open(filepath.Join(dir, file.DefaultFileName), logger.NewTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	tracks := testutil.Tracks(3)
	require.NoError(t, store.PutTracks(ctx, tracks...))
	id, err := store.CreateQueue(ctx, domain.PersistedQueueRecord{
		ProfileID: profile,
		Metadata:  domain.QueueMetadata{CurrentPosition: 1, RepeatMode: "all"},
		Tracks: []domain.QueueTrackRow{
			{TrackID: "t0", Position: 0, OriginalPosition: domain.NoIndex},
			{TrackID: "t1", Position: 1, OriginalPosition: domain.NoIndex},
			{TrackID: "deleted", Position: 2, OriginalPosition: domain.NoIndex},
		},
	})
	require.NoError(t, err)
	return id
}

func TestRunShow_NoQueue(t *testing.T) {
	var out bytes.Buffer
	err := runShow(context.Background(), &ShowParams{DataDir: t.TempDir(), Storage: "file", Profile: 3}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Profile 3 has no saved queue")
}

func TestRunShow_Table(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, 2)

	var out bytes.Buffer
	require.NoError(t, runShow(context.Background(), &ShowParams{DataDir: dir, Storage: "file", Profile: 2}, &out))

	text := out.String()
	assert.Contains(t, text, "Song t0")
	assert.Contains(t, text, "Song t1")
	assert.Contains(t, text, "repeat all")
	assert.Contains(t, text, "▶")
	assert.Contains(t, text, "3:00")
	assert.Contains(t, text, "1 queued tracks are no longer in the catalog")

	markerLine := ""
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "▶") {
			markerLine = line
		}
	}
	assert.Contains(t, markerLine, "Song t1", "current entry is marked")
}

func TestRunShow_JSON(t *testing.T) {
	dir := t.TempDir()
	id := seedStore(t, dir, 1)

	var out bytes.Buffer
	require.NoError(t, runShow(context.Background(), &ShowParams{DataDir: dir, Storage: "file", Profile: 1, JSON: true}, &out))

	var decoded struct {
		Record  domain.PersistedQueueRecord `json:"record"`
		Missing int                         `json:"missing_tracks"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, id, decoded.Record.ID)
	assert.Equal(t, 1, decoded.Missing)
}

func TestRunShow_InvalidStorage(t *testing.T) {
	err := runShow(context.Background(), &ShowParams{DataDir: t.TempDir(), Storage: "sqlite"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRunClear(t *testing.T) {
	dir := t.TempDir()
	id := seedStore(t, dir, 1)

	var out bytes.Buffer
	require.NoError(t, runClear(context.Background(), &ClearParams{DataDir: dir, Storage: "file", Profile: 1}, &out))
	assert.Contains(t, out.String(), "Deleted queue")

	out.Reset()
	require.NoError(t, runClear(context.Background(), &ClearParams{DataDir: dir, Storage: "file", Profile: 1}, &out))
	assert.Contains(t, out.String(), "has no saved queue")

	store, err := file.Open(filepath.Join(dir, file.DefaultFileName), logger.NewTestLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, store.UpdateQueueMetadata(context.Background(), id, domain.QueueMetadata{}), domain.ErrQueueNotFound)
}

func TestRunScan_EnqueuesTracks(t *testing.T) {
	music := t.TempDir()
	for _, name := range []string{"a.mp3", "b.mp3", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(music, name), bytes.Repeat([]byte{0xff}, 256), 0o644))
	}
	dir := t.TempDir()

	var out bytes.Buffer
	params := &ScanParams{Paths: []string{music}, DataDir: dir, Storage: "file", Profile: 4, Enqueue: true}
	require.NoError(t, runScan(context.Background(), params, &out))
	assert.Contains(t, out.String(), music+": 2 tracks, 0 skipped")
	assert.Contains(t, out.String(), "Queued 2 tracks, queue length 2")

	store, err := file.Open(filepath.Join(dir, file.DefaultFileName), logger.NewTestLogger())
	require.NoError(t, err)
	catalog, err := store.Tracks(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, 2)

	rec, err := store.GetCurrentQueue(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Tracks, 2)
}

func TestRunScan_CatalogOnly(t *testing.T) {
	music := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(music, "a.flac"), bytes.Repeat([]byte{0xff}, 256), 0o644))
	dir := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, runScan(context.Background(), &ScanParams{Paths: []string{music}, DataDir: dir, Storage: "file", Profile: 1}, &out))
	assert.NotContains(t, out.String(), "Queued")

	store, err := file.Open(filepath.Join(dir, file.DefaultFileName), logger.NewTestLogger())
	require.NoError(t, err)
	rec, err := store.GetCurrentQueue(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunScan_MissingFolder(t *testing.T) {
	params := &ScanParams{Paths: []string{filepath.Join(t.TempDir(), "nope")}, DataDir: t.TempDir(), Storage: "file"}
	err := runScan(context.Background(), params, &bytes.Buffer{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunWatch_ReprintsOnChange(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, &WatchParams{DataDir: dir, Profile: 5, Debounce: 10}, out, ready)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Profile 5 has no saved queue")
	}, 2*time.Second, 10*time.Millisecond)

	seedStore(t, dir, 5)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Song t1")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

type constantSampler float64

func (s constantSampler) MemoryLoadPercent(context.Context) (float64, error) {
	return float64(s), nil
}

func TestRunMemWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out syncBuffer
	err := runMemWatch(ctx, &MemWatchParams{Interval: 5, Threshold: 80}, constantSampler(92.5), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "pressure high (92.5% used)")
	assert.Contains(t, text, "memory 92.5% used, pressure high")
}

func TestRunMemWatch_Verbose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	var out syncBuffer
	require.NoError(t, runMemWatch(ctx, &MemWatchParams{Interval: 5, Threshold: 80, Verbose: true}, constantSampler(10), &out))
	assert.GreaterOrEqual(t, strings.Count(out.String(), "10.0% normal"), 1)
}

func TestRunMemWatch_RejectsBadParams(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, runMemWatch(ctx, &MemWatchParams{Interval: 0, Threshold: 80}, constantSampler(1), &bytes.Buffer{}), domain.ErrInvalidArgument)
	assert.ErrorIs(t, runMemWatch(ctx, &MemWatchParams{Interval: 10, Threshold: 0}, constantSampler(1), &bytes.Buffer{}), domain.ErrInvalidArgument)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "3:00", formatDuration(3*time.Minute))
	assert.Equal(t, "1:05", formatDuration(65*time.Second))
}
