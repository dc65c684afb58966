package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stitch/pkg/align"
	"github.com/matzehuels/stitch/pkg/cache"
	"github.com/matzehuels/stitch/pkg/observability"
	"github.com/matzehuels/stitch/pkg/raster"
)

const offsetKeyType = "offset"

// cachedOffset is the stored form of a pairwise offset. Layer indices are not
// stored since they depend on directory order, not on the images.
type cachedOffset struct {
	Shift image.Point `json:"shift"`
	Cost  float64     `json:"cost"`
}

// cacheMemo implements align.Memo on top of a cache.Cache. Image digests are
// computed once per image and reused for every pair it takes part in.
type cacheMemo struct {
	cache  cache.Cache
	keyer  cache.Keyer
	opts   cache.OffsetKeyOpts
	logger *log.Logger

	mu      sync.Mutex
	digests map[*raster.Image]string

	hits, misses atomic.Int64
}

func newCacheMemo(c cache.Cache, k cache.Keyer, opts cache.OffsetKeyOpts, logger *log.Logger) *cacheMemo {
	return &cacheMemo{
		cache:   c,
		keyer:   k,
		opts:    opts,
		logger:  orDiscard(logger),
		digests: make(map[*raster.Image]string),
	}
}

func (m *cacheMemo) digest(img *raster.Image) string {
	m.mu.Lock()
	d, ok := m.digests[img]
	m.mu.Unlock()
	if ok {
		return d
	}
	d = img.Digest()
	m.mu.Lock()
	m.digests[img] = d
	m.mu.Unlock()
	return d
}

func (m *cacheMemo) key(a, b *raster.Image) string {
	return m.keyer.OffsetKey(m.digest(a), m.digest(b), m.opts)
}

// Load returns a cached offset. Backend errors and corrupt entries are misses.
func (m *cacheMemo) Load(ctx context.Context, a, b *raster.Image) (align.Offset, bool) {
	data, hit, err := m.cache.Get(ctx, m.key(a, b))
	if err != nil {
		m.logger.Debug("offset cache read failed", "err", err)
	}
	if err != nil || !hit {
		m.misses.Add(1)
		observability.Cache().OnCacheMiss(ctx, offsetKeyType)
		return align.Offset{}, false
	}
	var c cachedOffset
	if err := json.Unmarshal(data, &c); err != nil {
		m.misses.Add(1)
		observability.Cache().OnCacheMiss(ctx, offsetKeyType)
		return align.Offset{}, false
	}
	m.hits.Add(1)
	observability.Cache().OnCacheHit(ctx, offsetKeyType)
	return align.Offset{Shift: c.Shift, Cost: c.Cost}, true
}

// Store writes an offset. Failures are logged and otherwise ignored.
func (m *cacheMemo) Store(ctx context.Context, a, b *raster.Image, o align.Offset) {
	data, err := json.Marshal(cachedOffset{Shift: o.Shift, Cost: o.Cost})
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, m.key(a, b), data, cache.TTLOffset); err != nil {
		m.logger.Debug("offset cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, offsetKeyType, len(data))
}

func (m *cacheMemo) info() CacheInfo {
	return CacheInfo{OffsetHits: int(m.hits.Load()), OffsetMisses: int(m.misses.Load())}
}
