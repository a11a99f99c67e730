package utils

import "container/heap"

// Compares the priority of two items. Negative means a comes first.
type PriorityFunc[T any] func(a, b T) int

// Returns true if two items are identical.
type EqualityFunc[T any] func(a, b T) bool

// A priority queue backed by container/heap.
type PriorityQueue[T any] struct {
	heap   priorityHeap[T]
	equals EqualityFunc[T]
}

func NewPriorityQueue[T any](compare PriorityFunc[T], equals EqualityFunc[T]) *PriorityQueue[T] {
	return &PriorityQueue[T]{
		heap: priorityHeap[T]{
			items:   make([]T, 0),
			compare: compare,
		},
		equals: equals,
	}
}

func (pq *PriorityQueue[T]) Push(item T) {
	heap.Push(&pq.heap, item)
}

// Pop removes and returns the highest priority item.
func (pq *PriorityQueue[T]) Pop() T {
	return heap.Pop(&pq.heap).(T)
}

// Peek returns the highest priority item without removing it.
func (pq *PriorityQueue[T]) Peek() T {
	return pq.heap.items[0]
}

func (pq *PriorityQueue[T]) Len() int {
	return pq.heap.Len()
}

// Remove removes the first item equal to the given item.
func (pq *PriorityQueue[T]) Remove(item T) bool {
	for i, x := range pq.heap.items {
		if pq.equals(x, item) {
			heap.Remove(&pq.heap, i)
			return true
		}
	}
	return false
}

func (pq *PriorityQueue[T]) Contains(item T) bool {
	for _, x := range pq.heap.items {
		if pq.equals(x, item) {
			return true
		}
	}
	return false
}

// Items returns the queued items in heap order, not priority order.
func (pq *PriorityQueue[T]) Items() []T {
	return pq.heap.items
}

// Reorder re-establishes the heap invariant after priorities changed.
func (pq *PriorityQueue[T]) Reorder() {
	heap.Init(&pq.heap)
}

type priorityHeap[T any] struct {
	items   []T
	compare PriorityFunc[T]
}

func (h priorityHeap[T]) Len() int {
	return len(h.items)
}

func (h priorityHeap[T]) Less(i, j int) bool {
	return h.compare(h.items[i], h.items[j]) < 0
}

func (h priorityHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *priorityHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *priorityHeap[T]) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
