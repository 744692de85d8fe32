package img2map

import (
	"sync"
	"sync/atomic"
)

// CachingClassifier memoises another Classifier per colour. Source art
// usually holds few distinct colours, so nearest-colour searches repeat a
// lot. Once the cache holds limit colours, new colours are classified but
// not stored. It is safe for concurrent use.
type CachingClassifier struct {
	inner Classifier
	limit int

	mu     sync.RWMutex
	table  map[Color]TileClass
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachingClassifier wraps inner with an empty cache holding at most
// limit colours. A limit of 0 or less means no limit.
func NewCachingClassifier(inner Classifier, limit int) *CachingClassifier {
	return &CachingClassifier{
		inner: inner,
		limit: limit,
		table: make(map[Color]TileClass),
	}
}

// Classify returns the cached class for c, asking the wrapped classifier on
// a miss.
func (cc *CachingClassifier) Classify(c Color) TileClass {
	cc.mu.RLock()
	class, ok := cc.table[c]
	cc.mu.RUnlock()
	if ok {
		cc.hits.Add(1)
		return class
	}

	// Concurrent misses on one colour compute the same class.
	class = cc.inner.Classify(c)
	cc.misses.Add(1)
	cc.mu.Lock()
	if cc.limit <= 0 || len(cc.table) < cc.limit {
		cc.table[c] = class
	}
	cc.mu.Unlock()
	return class
}

// Stats returns the number of cache hits and misses so far.
func (cc *CachingClassifier) Stats() (hits, misses uint64) {
	return cc.hits.Load(), cc.misses.Load()
}

// Len returns the number of cached colours.
func (cc *CachingClassifier) Len() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.table)
}
