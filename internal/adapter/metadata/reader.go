// Package metadata reads track metadata from audio file tags.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// trackNamespace scopes the name-based track ids derived from file paths.
var trackNamespace = uuid.MustParse("6b1c8f0e-5f7a-4a52-9f0c-0a4c1f6f2d11")

// TagReader reads ID3, MP4, FLAC and Ogg tags.
// Files without tags still produce a track titled after the file name.
type TagReader struct{}

// NewTagReader creates a tag reader.
func NewTagReader() *TagReader {
	return &TagReader{}
}

// ReadMetadata returns the catalog entry for path. The track id is derived
// from the absolute path, so rescanning a file yields the same id.
func (r *TagReader) ReadMetadata(ctx context.Context, path string) (domain.MusicTrack, error) {
	if err := ctx.Err(); err != nil {
		return domain.MusicTrack{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.MusicTrack{}, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return domain.MusicTrack{}, fmt.Errorf("opening %s: %w", abs, err)
	}
	defer f.Close()

	track := domain.MusicTrack{
		ID:       TrackID(abs),
		FilePath: abs,
		Title:    strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
	}

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return track, nil
	}
	if err != nil {
		return domain.MusicTrack{}, fmt.Errorf("reading tags of %s: %w", abs, err)
	}

	if title := strings.TrimSpace(m.Title()); title != "" {
		track.Title = title
	}
	track.Artist = strings.TrimSpace(m.Artist())
	if track.Artist == "" {
		track.Artist = strings.TrimSpace(m.AlbumArtist())
	}
	track.Album = strings.TrimSpace(m.Album())
	if m.Picture() != nil {
		// The image loader reads embedded pictures straight from the audio file.
		track.ArtworkPath = abs
	}
	return track, nil
}

// TrackID returns the catalog id used for the file at absPath.
func TrackID(absPath string) string {
	return uuid.NewSHA1(trackNamespace, []byte(absPath)).String()
}

// Verify interface implementation
var _ ports.MetadataReader = (*TagReader)(nil)
