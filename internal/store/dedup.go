// Package store remembers which tracks a batch run already downloaded,
// using a Bloom filter in front of a bounded LRU set.
package store

import (
	"errors"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidCapacity is returned for a non-positive capacity.
var ErrInvalidCapacity = errors.New("dedup capacity must be positive")

// DedupStore is a thread-safe, in-memory set of track keys with LRU eviction.
// It implements core.Deduper.
type DedupStore struct {
	keys  map[string]struct{}
	bloom *bloom.BloomFilter
	lru   *lru.Cache[string, struct{}]
	mutex sync.RWMutex
}

// NewDedupStore creates a store holding at most capacity keys.
func NewDedupStore(capacity int, bloomFalsePositiveRate float64) (*DedupStore, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	ds := &DedupStore{
		keys:  make(map[string]struct{}),
		bloom: bloom.NewWithEstimates(uint(capacity), bloomFalsePositiveRate),
	}

	// The evict callback runs inside Add, which already holds ds.mutex.
	cache, err := lru.NewWithEvict[string, struct{}](capacity, func(key string, _ struct{}) {
		delete(ds.keys, key)
	})
	if err != nil {
		return nil, err
	}
	ds.lru = cache

	return ds, nil
}

// Has reports whether key was added and not evicted since.
func (ds *DedupStore) Has(key string) bool {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(key) {
		return false
	}

	_, exists := ds.keys[key]
	return exists
}

// Add records key, evicting the least recently added key when the store is full.
// Adding a known key refreshes its recency. Empty keys are ignored.
func (ds *DedupStore) Add(key string) {
	if key == "" {
		return
	}

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if _, exists := ds.keys[key]; exists {
		ds.lru.Get(key)
		return
	}

	ds.keys[key] = struct{}{}
	ds.bloom.AddString(key)
	ds.lru.Add(key, struct{}{})
}
