package service

import (
	"cmp"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
)

var errBadTags = errors.New("bad tags")

// fakeReader names tracks after their file and fails for paths in fail.
// When gate is set every read waits for it.
type fakeReader struct {
	fail    map[string]bool
	gate    chan struct{}
	started chan string
}

func (r *fakeReader) ReadMetadata(ctx context.Context, path string) (domain.MusicTrack, error) {
	if r.started != nil {
		r.started <- path
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return domain.MusicTrack{}, ctx.Err()
		}
	}
	if r.fail[filepath.Base(path)] {
		return domain.MusicTrack{}, errBadTags
	}
	return domain.MusicTrack{ID: filepath.Base(path), FilePath: path, Title: filepath.Base(path)}, nil
}

// mockCatalog is an in-memory ports.TrackCatalog.
type mockCatalog struct {
	mu     sync.Mutex
	tracks map[string]domain.MusicTrack
	err    error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{tracks: make(map[string]domain.MusicTrack)}
}

func (c *mockCatalog) PutTracks(_ context.Context, tracks ...domain.MusicTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, t := range tracks {
		c.tracks[t.ID] = t
	}
	return nil
}

func (c *mockCatalog) Tracks(context.Context) ([]domain.MusicTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.MusicTrack, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.MusicTrack) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (c *mockCatalog) ResolveTracks(_ context.Context, rows []domain.QueueTrackRow) ([]domain.ResolvedRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ResolvedRow, 0, len(rows))
	for _, row := range rows {
		if t, ok := c.tracks[row.TrackID]; ok {
			out = append(out, domain.ResolvedRow{Row: row, Track: t})
		}
	}
	return out, nil
}

func createTestMusicFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{
		"song1.mp3",
		"song2.FLAC",
		"track.wav",
		"broken.ogg",
		"readme.txt",
		"cover.jpg",
		"subdir/nested.mp3",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	return dir
}

func TestLibraryService_ScanFolder(t *testing.T) {
	dir := createTestMusicFolder(t)
	catalog := newMockCatalog()
	bus := eventbus.NewSyncEventBus(logger.NewTestLogger())
	defer bus.Close()

	var scanned []domain.LibraryScannedEvent
	bus.Subscribe(domain.EventLibraryScanned, func(e domain.Event) {
		scanned = append(scanned, e.(domain.LibraryScannedEvent))
	})

	s := NewLibraryService(logger.NewTestLogger(), &fakeReader{fail: map[string]bool{"broken.ogg": true}}, catalog, bus)

	tracks, err := s.ScanFolder(context.Background(), dir)
	require.NoError(t, err)

	ids := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		ids = append(ids, tr.ID)
	}
	assert.ElementsMatch(t, []string{"song1.mp3", "song2.FLAC", "track.wav", "nested.mp3"}, ids)

	stored, err := catalog.Tracks(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	require.Len(t, scanned, 1)
	assert.Equal(t, dir, scanned[0].Root)
	assert.Len(t, scanned[0].Tracks, 4)
	assert.Equal(t, 1, scanned[0].Skipped)
	assert.False(t, s.IsScanning())
}

func TestLibraryService_ScanFolderMissingRoot(t *testing.T) {
	s := NewLibraryService(logger.NewTestLogger(), &fakeReader{}, newMockCatalog(), nil)

	_, err := s.ScanFolder(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	var svcErr *domain.ServiceError
	assert.ErrorAs(t, err, &svcErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLibraryService_ScanFiles(t *testing.T) {
	catalog := newMockCatalog()
	s := NewLibraryService(logger.NewTestLogger(), &fakeReader{}, catalog, nil)

	tracks, err := s.ScanFiles(context.Background(), []string{"/music/a.mp3", "/music/notes.txt", "/music/b.opus"})
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "a.mp3", tracks[0].ID)
	assert.Equal(t, "b.opus", tracks[1].ID)
}

func TestLibraryService_CatalogFailure(t *testing.T) {
	catalog := newMockCatalog()
	catalog.err = errStorageDown
	s := NewLibraryService(logger.NewTestLogger(), &fakeReader{}, catalog, nil)

	_, err := s.ScanFiles(context.Background(), []string{"a.mp3"})
	assert.ErrorIs(t, err, errStorageDown)
}

func TestLibraryService_OneScanAtATime(t *testing.T) {
	reader := &fakeReader{gate: make(chan struct{}), started: make(chan string, 4)}
	s := NewLibraryService(logger.NewTestLogger(), reader, newMockCatalog(), nil)

	errc := make(chan error, 1)
	go func() {
		_, err := s.ScanFiles(context.Background(), []string{"a.mp3"})
		errc <- err
	}()
	<-reader.started
	assert.True(t, s.IsScanning())

	_, err := s.ScanFiles(context.Background(), []string{"b.mp3"})
	assert.ErrorIs(t, err, domain.ErrScanInProgress)

	close(reader.gate)
	require.NoError(t, <-errc)
	assert.False(t, s.IsScanning())
}

func TestLibraryService_CancelScan(t *testing.T) {
	reader := &fakeReader{gate: make(chan struct{}), started: make(chan string, 4)}
	catalog := newMockCatalog()
	s := NewLibraryService(logger.NewTestLogger(), reader, catalog, nil)

	assert.False(t, s.CancelScan())

	errc := make(chan error, 1)
	go func() {
		_, err := s.ScanFiles(context.Background(), []string{"a.mp3", "b.mp3"})
		errc <- err
	}()
	<-reader.started
	assert.True(t, s.CancelScan())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, domain.ErrScanCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("scan did not stop")
	}
	stored, err := catalog.Tracks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLibraryService_ShutdownCancelsScan(t *testing.T) {
	reader := &fakeReader{gate: make(chan struct{}), started: make(chan string, 4)}
	s := NewLibraryService(logger.NewTestLogger(), reader, newMockCatalog(), nil)
	dir := createTestMusicFolder(t)

	errc := make(chan error, 1)
	go func() {
		_, err := s.ScanFolder(context.Background(), dir)
		errc <- err
	}()
	<-reader.started
	require.NoError(t, s.Shutdown())
	assert.ErrorIs(t, <-errc, domain.ErrScanCancelled)
}

func TestLibraryService_IsFormatSupported(t *testing.T) {
	s := NewLibraryService(logger.NewTestLogger(), &fakeReader{}, newMockCatalog(), nil)

	tests := []struct {
		path string
		want bool
	}{
		{"song.mp3", true},
		{"song.MP3", true},
		{"/a/b/c.flac", true},
		{"voice.opus", true},
		{"book.m4b", true},
		{"cover.jpg", false},
		{"noext", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsFormatSupported(tt.path))
		})
	}

	formats := s.SupportedFormats()
	formats[0] = ".changed"
	assert.Equal(t, ".mp3", s.SupportedFormats()[0])
}
