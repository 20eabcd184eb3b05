package modality

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded bundles CachedIO keeps.
const DefaultCacheSize = 64

// CachedIO wraps IO with an LRU of decoded bundles. Entries are keyed by
// absolute path, modification time and size, so a rewritten file misses.
type CachedIO struct {
	*IO
	cache *lru.Cache[string, *Bundle]
}

// NewCachedIO creates a cached facade holding up to size bundles.
func NewCachedIO(inner *IO, size int) *CachedIO {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, *Bundle](size)
	return &CachedIO{IO: inner, cache: cache}
}

func cacheKey(prefix, path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s\x00%s\x00%d\x00%d", prefix, abs, info.ModTime().UnixNano(), info.Size()), true
}

// Read returns a copy of the cached bundle for path, decoding on a miss.
func (c *CachedIO) Read(ctx context.Context, path string) (*Bundle, error) {
	return c.cached("", path, func() (*Bundle, error) { return c.IO.Read(ctx, path) })
}

// ReadWithModality is Read with a forced modality; it is cached separately.
func (c *CachedIO) ReadWithModality(ctx context.Context, m Modality, path string) (*Bundle, error) {
	return c.cached(string(m), path, func() (*Bundle, error) { return c.IO.ReadWithModality(ctx, m, path) })
}

func (c *CachedIO) cached(prefix, path string, load func() (*Bundle, error)) (*Bundle, error) {
	key, ok := cacheKey(prefix, path)
	if ok {
		if b, hit := c.cache.Get(key); hit {
			return b.Clone(), nil
		}
	}
	b, err := load()
	if err != nil {
		return nil, err
	}
	if ok {
		c.cache.Add(key, b.Clone())
	}
	return b, nil
}

// Write encodes b and drops any cached entries for path.
func (c *CachedIO) Write(ctx context.Context, m Modality, b *Bundle, path string) error {
	if err := c.IO.Write(ctx, m, b, path); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	for _, key := range c.cache.Keys() {
		if keyHasPath(key, abs) {
			c.cache.Remove(key)
		}
	}
	return nil
}

func keyHasPath(key, abs string) bool {
	parts := strings.SplitN(key, "\x00", 3)
	return len(parts) == 3 && parts[1] == abs
}

// Len returns the number of cached bundles.
func (c *CachedIO) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *CachedIO) Purge() {
	c.cache.Purge()
}
