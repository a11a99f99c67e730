package utils

import (
	"container/list"
	"sync"
)

// An item tracked by the LRU cache.
type LRUItem interface {
	Path() string
	Size() int64
}

// EvictFunc is called when an item is evicted. Return false to keep the item.
type EvictFunc[E LRUItem] func(item E) bool

// LRU is a size-bounded cache of filesystem items.
// A max size of zero means the cache is unbounded.
type LRU[E LRUItem] struct {
	mu sync.Mutex

	maxSize     int64
	currentSize int64

	order *list.List
	index map[string]*list.Element

	onEvict EvictFunc[E]
}

func NewLRU[E LRUItem](maxSize int64, onEvict EvictFunc[E]) *LRU[E] {
	return &LRU[E]{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
		onEvict: onEvict,
	}
}

// Add inserts an item, or refreshes it if already present.
// Evicts the least recently used items while over budget.
func (lru *LRU[E]) Add(item E) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if ele, ok := lru.index[item.Path()]; ok {
		lru.currentSize -= ele.Value.(E).Size()
		lru.currentSize += item.Size()
		lru.order.MoveToFront(ele)
		ele.Value = item
	} else {
		lru.index[item.Path()] = lru.order.PushFront(item)
		lru.currentSize += item.Size()
	}

	if lru.maxSize <= 0 {
		return
	}

	// One pass from least to most recently used. Items whose eviction
	// callback declines stay in place, so the pass always terminates
	// even if the cache remains over budget.
	ele := lru.order.Back()
	for lru.currentSize > lru.maxSize && ele != nil {
		prev := ele.Prev()
		if lru.onEvict == nil || lru.onEvict(ele.Value.(E)) {
			lru.removeElement(ele)
		}
		ele = prev
	}
}

// Get returns an item and marks it recently used.
func (lru *LRU[E]) Get(path string) (item E, ok bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if ele, hit := lru.index[path]; hit {
		lru.order.MoveToFront(ele)
		return ele.Value.(E), true
	}
	return
}

// Remove removes an item without invoking the eviction callback.
func (lru *LRU[E]) Remove(path string) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if ele, hit := lru.index[path]; hit {
		lru.removeElement(ele)
	}
}

// Size returns the total size of all items in the cache.
func (lru *LRU[E]) Size() int64 {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.currentSize
}

// Count returns the number of items in the cache.
func (lru *LRU[E]) Count() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.order.Len()
}

func (lru *LRU[E]) removeElement(ele *list.Element) {
	lru.order.Remove(ele)
	item := ele.Value.(E)
	delete(lru.index, item.Path())
	lru.currentSize -= item.Size()
}
