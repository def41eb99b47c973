package ports

import (
	"context"
	"image"
)

// ImageDecoder decodes a picture and scales it to fit the requested box.
//
// A width or height of zero or less leaves the image at its natural size.
// Implementations must be safe for concurrent use by the image workers.
type ImageDecoder interface {
	DecodeAndResize(ctx context.Context, path string, width, height int, highQuality bool) (image.Image, error)
}
