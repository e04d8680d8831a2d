package core

import (
	"container/list"
	"context"
	"sync"

	"PortfolioLedger/internal/observability"
)

// IdempotencyChecker implements two-tier deduplication of external ids.
type IdempotencyChecker struct {
	// Tier 1: In-memory LRU
	lru *IdempotencyLRU

	metrics *observability.Metrics
}

// DBIdempotencyChecker is the tier-2 lookup. *persistence.Queries satisfies
// it, so the check runs inside the operation's transaction.
type DBIdempotencyChecker interface {
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)
}

func NewIdempotencyChecker(capacity int, metrics *observability.Metrics) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:     NewIdempotencyLRU(capacity),
		metrics: metrics,
	}
}

// SeenRecently is the tier-1 check. A hit means the id was committed by this
// process; a miss proves nothing.
func (ic *IdempotencyChecker) SeenRecently(op, externalID string) bool {
	if ic.lru.Contains(externalID) {
		ic.recordDuplicate(op, "lru")
		return true
	}
	return false
}

// IsDuplicate runs both tiers. Tier-2 errors are returned: the caller is
// inside a transaction and must not guess.
func (ic *IdempotencyChecker) IsDuplicate(ctx context.Context, op, externalID string, db DBIdempotencyChecker) (bool, error) {
	if ic.SeenRecently(op, externalID) {
		return true, nil
	}
	if db == nil {
		return false, nil
	}

	exists, err := db.ExternalIDExists(ctx, externalID)
	if err != nil {
		return false, err
	}
	if exists {
		ic.recordDuplicate(op, "db")
		// Add to LRU so we don't hit DB again
		ic.lru.Add(externalID)
		return true, nil
	}
	return false, nil
}

// MarkProcessed adds the id to the LRU after a successful commit.
func (ic *IdempotencyChecker) MarkProcessed(externalID string) {
	evicted := ic.lru.Add(externalID)
	if ic.metrics != nil {
		ic.metrics.DedupLRUSize.Set(float64(ic.lru.Size()))
		if evicted {
			ic.metrics.DedupLRUEvictions.Inc()
		}
	}
}

// Warm preloads recently used ids, e.g. on restart.
func (ic *IdempotencyChecker) Warm(externalIDs []string) {
	ic.lru.WarmFromKeys(externalIDs)
}

func (ic *IdempotencyChecker) recordDuplicate(op, tier string) {
	if ic.metrics != nil {
		ic.metrics.IdempotencyDuplicates.WithLabelValues(op, tier).Inc()
	}
}

// --- LRU Implementation ---

// IdempotencyLRU is a mutex-guarded LRU set of external ids.
type IdempotencyLRU struct {
	mu       sync.Mutex
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List

	evictions int64
}

func NewIdempotencyLRU(capacity int) *IdempotencyLRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &IdempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front)
func (lru *IdempotencyLRU) Contains(key string) bool {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if exists) and reports whether an older key
// was evicted to make room.
func (lru *IdempotencyLRU) Add(key string) bool {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.add(key)
}

func (lru *IdempotencyLRU) add(key string) bool {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return false
	}

	lru.cache[key] = lru.lruList.PushFront(key)

	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
		return true
	}
	return false
}

func (lru *IdempotencyLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		delete(lru.cache, elem.Value.(string))
		lru.evictions++
	}
}

// WarmFromKeys loads a batch of keys into the LRU.
func (lru *IdempotencyLRU) WarmFromKeys(keys []string) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	for _, key := range keys {
		lru.add(key)
	}
}

// Size returns current number of entries
func (lru *IdempotencyLRU) Size() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.lruList.Len()
}

// Evictions returns total evictions (for metrics)
func (lru *IdempotencyLRU) Evictions() int64 {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.evictions
}
