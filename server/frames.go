package server

import (
	"fmt"
	"sync/atomic"

	"github.com/coocood/freecache"

	"github.com/janelia-flyem/cardiowave/cardio"
)

// minFrameCacheSize is the smallest cache freecache will allocate.
const minFrameCacheSize = 512 * cardio.Kilo

// FrameCache holds rendered RGBA frames keyed by ramp, generation and step.  The
// generation changes whenever state changes without stepping, e.g. pacing or a restore,
// so a frame is never served for state it was not rendered from.
type FrameCache struct {
	cache      *freecache.Cache
	generation uint64
}

// NewFrameCache returns a frame cache of roughly the given number of bytes.  Frames
// larger than 1/1024 of the cache are rendered but not cached.
func NewFrameCache(bytes int) *FrameCache {
	if bytes < minFrameCacheSize {
		bytes = minFrameCacheSize
	}
	return &FrameCache{cache: freecache.NewCache(bytes)}
}

// Invalidate starts a new generation so no earlier frame is served again.
func (fc *FrameCache) Invalidate() {
	atomic.AddUint64(&fc.generation, 1)
}

// Generation returns the current generation.
func (fc *FrameCache) Generation() uint64 {
	return atomic.LoadUint64(&fc.generation)
}

func frameKey(ramp string, gen, step uint64) []byte {
	return []byte(fmt.Sprintf("%s/%d/%d", ramp, gen, step))
}

// Get returns a cached frame.
func (fc *FrameCache) Get(ramp string, gen, step uint64) ([]byte, bool) {
	data, err := fc.cache.Get(frameKey(ramp, gen, step))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a frame.  Frames too large for the cache are dropped.
func (fc *FrameCache) Set(ramp string, gen, step uint64, frame []byte) {
	if err := fc.cache.Set(frameKey(ramp, gen, step), frame, 0); err != nil {
		cardio.Debugf("Frame for step %d not cached: %v\n", step, err)
	}
}

// EntryCount returns the number of cached frames.
func (fc *FrameCache) EntryCount() int64 {
	return fc.cache.EntryCount()
}

// HitRate returns the ratio of cache hits to lookups.
func (fc *FrameCache) HitRate() float64 {
	return fc.cache.HitRate()
}
