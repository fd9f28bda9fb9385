package memory

import (
	"container/heap"
	"time"
)

// expiryPair records that key was given expiration instant at.
type expiryPair struct {
	at  time.Time
	key string
}

// expiryHeap is a min-heap of expiryPair ordered by instant.
type expiryHeap []expiryPair

var _ heap.Interface = (*expiryHeap)(nil)

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) {
	*h = append(*h, x.(expiryPair))
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = expiryPair{}
	*h = old[:n-1]
	return item
}

// peek returns the earliest pair without removing it.
func (h expiryHeap) peek() (expiryPair, bool) {
	if len(h) == 0 {
		return expiryPair{}, false
	}
	return h[0], true
}
