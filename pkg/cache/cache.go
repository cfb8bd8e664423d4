// Package cache keeps recent analyses keyed by the digest of the uploaded
// archive, so re-uploading the same file skips parsing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"migra/pkg/engine"
)

const defaultEntries = 64

// Key returns the cache key of an archive.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AnalysisCache is a size and age bounded cache of analyses. It is safe for
// concurrent use.
type AnalysisCache struct {
	entries *expirable.LRU[string, *engine.Analysis]
}

// New creates a cache holding up to size analyses for ttl each. A zero ttl
// keeps entries until they are evicted by size.
func New(size int, ttl time.Duration) *AnalysisCache {
	if size <= 0 {
		size = defaultEntries
	}
	return &AnalysisCache{entries: expirable.NewLRU[string, *engine.Analysis](size, nil, ttl)}
}

func (c *AnalysisCache) Get(key string) (*engine.Analysis, bool) {
	return c.entries.Get(key)
}

func (c *AnalysisCache) Add(key string, a *engine.Analysis) {
	c.entries.Add(key, a)
}

func (c *AnalysisCache) Len() int {
	return c.entries.Len()
}

// Analyzer is the analysis pass being cached.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*engine.Analysis, error)
}

// CachedAnalyzer serves repeated archives from the cache and delegates the
// rest. Failed analyses are not cached.
type CachedAnalyzer struct {
	next  Analyzer
	cache *AnalysisCache
}

func NewCachedAnalyzer(next Analyzer, cache *AnalysisCache) *CachedAnalyzer {
	return &CachedAnalyzer{next: next, cache: cache}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, data []byte) (*engine.Analysis, error) {
	if c.cache == nil {
		return c.next.Analyze(ctx, data)
	}

	key := Key(data)
	if a, ok := c.cache.Get(key); ok {
		return a, nil
	}

	a, err := c.next.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, a)
	return a, nil
}
