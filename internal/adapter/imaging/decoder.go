// Package imaging decodes and scales artwork for the image load queue.
package imaging

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/samber/lo"
	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// audioExtensions are files whose artwork is read from embedded tags.
var audioExtensions = []string{".mp3", ".m4a", ".m4b", ".mp4", ".flac", ".ogg"}

// Decoder reads image files, or the picture embedded in audio files, and
// scales them to fit a bounding box.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// DecodeAndResize decodes path and scales it to fit within width x height,
// keeping the aspect ratio. A non-positive width or height returns the image
// at its original size. Images are never scaled up.
func (d *Decoder) DecodeAndResize(ctx context.Context, path string, width, height int, highQuality bool) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := d.decode(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		return src, nil
	}
	target := fitWithin(src.Bounds().Size(), width, height)
	if target == src.Bounds().Size() {
		return src, nil
	}

	dst := image.NewRGBA(image.Rectangle{Max: target})
	var scaler draw.Scaler = draw.ApproxBiLinear
	if highQuality {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

func (d *Decoder) decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artwork: %w", err)
	}
	defer f.Close()

	if isAudioFile(path) {
		return d.decodeEmbedded(f, path)
	}

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, unsupported(path, err)
	}
	d.logger.Debug("decoded artwork", slog.String("path", path), slog.String("format", format))
	return img, nil
}

func (d *Decoder) decodeEmbedded(f *os.File, path string) (image.Image, error) {
	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, unsupported(path, err)
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, fmt.Errorf("%w: %s has no embedded artwork", domain.ErrUnsupportedImage, path)
	}

	img, _, err := image.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		return nil, unsupported(path, err)
	}
	d.logger.Debug("decoded embedded artwork",
		slog.String("path", path),
		slog.String("mime", pic.MIMEType),
		slog.String("tag_format", string(m.Format())))
	return img, nil
}

func unsupported(path string, err error) error {
	if errors.Is(err, image.ErrFormat) || errors.Is(err, tag.ErrNoTagsFound) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedImage, path)
	}
	return fmt.Errorf("decoding %s: %w", path, err)
}

func isAudioFile(path string) bool {
	return lo.Contains(audioExtensions, strings.ToLower(filepath.Ext(path)))
}

// fitWithin scales size down to fit the box, keeping the aspect ratio.
func fitWithin(size image.Point, width, height int) image.Point {
	if size.X <= width && size.Y <= height {
		return size
	}
	if size.X == 0 || size.Y == 0 {
		return size
	}

	// Compare width/size.X with height/size.Y without floating point.
	if width*size.Y <= height*size.X {
		return image.Pt(width, max(1, size.Y*width/size.X))
	}
	return image.Pt(max(1, size.X*height/size.Y), height)
}

// Verify interface implementation
var _ ports.ImageDecoder = (*Decoder)(nil)
