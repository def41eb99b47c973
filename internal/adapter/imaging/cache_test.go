package imaging

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
	"github.com/tejashwikalptaru/gotune-queue/internal/testutil"
)

// countingDecoder counts decodes and can hold them until released.
type countingDecoder struct {
	calls   atomic.Int32
	hold    chan struct{}
	failFor string
}

func (d *countingDecoder) DecodeAndResize(_ context.Context, path string, w, h int, _ bool) (image.Image, error) {
	d.calls.Add(1)
	if d.hold != nil {
		<-d.hold
	}
	if path == d.failFor {
		return nil, errors.New("broken file")
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func TestCache_HitsAfterFirstDecode(t *testing.T) {
	next := &countingDecoder{}
	c, err := NewCache(logger.NewTestLogger(), next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.DecodeAndResize(ctx, "a.png", 10, 10, false)
	require.NoError(t, err)
	second, err := c.DecodeAndResize(ctx, "a.png", 10, 10, false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = c.DecodeAndResize(ctx, "a.png", 10, 10, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load(), "quality is part of the key")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 2, stats.Len)
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	next := &countingDecoder{failFor: "bad.png"}
	c, err := NewCache(logger.NewTestLogger(), next, 8)
	require.NoError(t, err)

	for range 2 {
		_, err := c.DecodeAndResize(context.Background(), "bad.png", 1, 1, false)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCache_ConcurrentRequestsShareOneDecode(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	next := &countingDecoder{hold: make(chan struct{})}
	c, err := NewCache(logger.NewTestLogger(), next, 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.DecodeAndResize(context.Background(), "shared.png", 4, 4, false)
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.hold)
	wg.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCache_MemoryPressure(t *testing.T) {
	next := &countingDecoder{}
	c, err := NewCache(logger.NewTestLogger(), next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c", "d", "e"} {
		_, err := c.DecodeAndResize(ctx, p, 1, 1, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, c.Stats().Len)

	c.OnHighMemoryPressure()
	stats := c.Stats()
	assert.Zero(t, stats.Len)
	assert.Equal(t, 2, stats.Cap)

	for _, p := range []string{"a", "b", "c"} {
		_, err := c.DecodeAndResize(ctx, p, 1, 1, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Stats().Len, "shrunken cache evicts")

	c.OnNormalMemoryPressure()
	assert.Equal(t, 8, c.Stats().Cap)
}

func TestNewCache_RejectsZeroCapacity(t *testing.T) {
	_, err := NewCache(logger.NewTestLogger(), &countingDecoder{}, 0)
	assert.Error(t, err)
}
