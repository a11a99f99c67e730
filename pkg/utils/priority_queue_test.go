package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueue(t *testing.T) {
	compareFunc := PriorityFunc[int](func(a, b int) int {
		if a < b {
			return 1
		} else if a > b {
			return -1
		}
		return 0
	})

	equalityFunc := EqualityFunc[int](func(a, b int) bool {
		return a == b
	})

	// Create a priority queue.
	pq := NewPriorityQueue[int](compareFunc, equalityFunc)

	// Push items to the priority queue
	pq.Push(3)
	pq.Push(1)
	pq.Push(2)

	// Verify pop order
	assert.Equal(t, 3, pq.Pop())
	assert.Equal(t, 2, pq.Pop())
	assert.Equal(t, 1, pq.Pop())

	// Remove an item from the priority queue
	pq.Push(1)
	pq.Push(4)
	pq.Push(5)
	pq.Remove(4)

	// Verify pop order after removal
	assert.Equal(t, 5, pq.Pop())
	assert.Equal(t, 1, pq.Pop())
}

func TestPriorityQueueFifo(t *testing.T) {
	type entry struct {
		id       string
		sequence int64
	}

	compareFunc := PriorityFunc[*entry](func(a, b *entry) int {
		switch {
		case a.sequence < b.sequence:
			return -1
		case a.sequence > b.sequence:
			return 1
		}
		return 0
	})

	equalityFunc := EqualityFunc[*entry](func(a, b *entry) bool {
		return a.id == b.id
	})

	pq := NewPriorityQueue[*entry](compareFunc, equalityFunc)
	pq.Push(&entry{id: "c", sequence: 3})
	pq.Push(&entry{id: "a", sequence: 1})
	pq.Push(&entry{id: "b", sequence: 2})

	assert.Equal(t, "a", pq.Peek().id)
	assert.Equal(t, "a", pq.Pop().id)
	assert.Equal(t, "b", pq.Pop().id)
	assert.Equal(t, "c", pq.Pop().id)
	assert.Equal(t, 0, pq.Len())
}
