package service

import (
	"context"
	"image"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
)

// ImageFuture is the pending result of ImageLoader.LoadImage.
type ImageFuture struct {
	done chan struct{}
	img  image.Image
	err  error
}

func newImageFuture() *ImageFuture {
	return &ImageFuture{done: make(chan struct{})}
}

// resolve is called exactly once per future.
func (f *ImageFuture) resolve(img image.Image, err error) {
	f.img = img
	f.err = err
	close(f.done)
}

// Done is closed when the result is available.
func (f *ImageFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
// A nil image with a nil error means there was nothing to load.
func (f *ImageFuture) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-f.done:
		return f.img, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// imageRequest is one pending decode.
type imageRequest struct {
	path        string
	width       int
	height      int
	highQuality bool

	priority domain.ImagePriority
	// base is the priority requested by the caller, restored when the path
	// stops being visible
	base    domain.ImagePriority
	visible bool
	seq     uint64
	future  *ImageFuture
}

// imageHeap orders requests by priority, then visible before hidden, then
// submission order. It implements heap.Interface.
type imageHeap []*imageRequest

func (h imageHeap) Len() int { return len(h) }

func (h imageHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	if h[i].visible != h[j].visible {
		return h[i].visible
	}
	return h[i].seq < h[j].seq
}

func (h imageHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *imageHeap) Push(x any) {
	*h = append(*h, x.(*imageRequest))
}

func (h *imageHeap) Pop() any {
	old := *h
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return req
}
