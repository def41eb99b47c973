package imaging

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// pressureDivisor is how much the cache shrinks under high memory pressure.
const pressureDivisor = 4

type cacheKey struct {
	path        string
	width       int
	height      int
	highQuality bool
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s|%dx%d|%t", k.path, k.width, k.height, k.highQuality)
}

// CacheStats counts cache lookups.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Len    int
	Cap    int
}

// Cache is an ImageDecoder that keeps recently decoded images in an LRU and
// collapses concurrent decodes of the same request into one.
//
// It is also a memory pressure responder: high pressure empties the cache and
// shrinks it, normal pressure restores the configured size.
type Cache struct {
	logger   *slog.Logger
	next     ports.ImageDecoder
	entries  *lru.Cache[cacheKey, image.Image]
	group    singleflight.Group
	capacity int

	current atomic.Int64
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCache wraps next with an LRU of the given number of entries.
func NewCache(logger *slog.Logger, next ports.ImageDecoder, capacity int) (*Cache, error) {
	entries, err := lru.New[cacheKey, image.Image](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating artwork cache: %w", err)
	}
	c := &Cache{
		logger:   logger,
		next:     next,
		entries:  entries,
		capacity: capacity,
	}
	c.current.Store(int64(capacity))
	return c, nil
}

// DecodeAndResize returns a cached image or decodes it through the wrapped decoder.
// Failed decodes are not cached.
func (c *Cache) DecodeAndResize(ctx context.Context, path string, width, height int, highQuality bool) (image.Image, error) {
	key := cacheKey{path: path, width: width, height: height, highQuality: highQuality}
	if img, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return img, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if img, ok := c.entries.Get(key); ok {
			c.hits.Add(1)
			return img, nil
		}
		c.misses.Add(1)
		img, err := c.next.DecodeAndResize(ctx, path, width, height, highQuality)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// OnHighMemoryPressure drops every cached image and shrinks the cache.
func (c *Cache) OnHighMemoryPressure() {
	reduced := max(1, c.capacity/pressureDivisor)
	dropped := c.entries.Len()
	c.entries.Purge()
	c.entries.Resize(reduced)
	c.current.Store(int64(reduced))

	c.logger.Info("artwork cache purged",
		slog.Int("dropped", dropped),
		slog.Int("capacity", reduced))
}

// OnNormalMemoryPressure restores the configured cache size.
func (c *Cache) OnNormalMemoryPressure() {
	c.entries.Resize(c.capacity)
	c.current.Store(int64(c.capacity))
	c.logger.Debug("artwork cache restored", slog.Int("capacity", c.capacity))
}

// Stats returns lookup counters and the current size.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Len:    c.entries.Len(),
		Cap:    int(c.current.Load()),
	}
}

// Verify interface implementation
var (
	_ ports.ImageDecoder            = (*Cache)(nil)
	_ ports.MemoryPressureResponder = (*Cache)(nil)
)
