package queue

import (
	"container/heap"
	"sync"
)

// Config configures the work queue.
type Config struct {
	// MaxDepth caps the number of waiting items. Enqueue returns ErrFull
	// once it is reached.
	// Default: 0 (unbounded)
	MaxDepth int
}

// Queue is a concurrency-safe priority queue of Items.
type Queue struct {
	config Config

	mu    sync.Mutex
	items itemHeap
	seq   uint64
}

// New creates an empty queue.
func New(config Config) *Queue {
	if config.MaxDepth < 0 {
		config.MaxDepth = 0
	}
	return &Queue{config: config}
}

// Enqueue adds item to the queue.
func (q *Queue) Enqueue(item *Item) error {
	if item == nil {
		return ErrNilItem
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.config.MaxDepth > 0 && len(q.items) >= q.config.MaxDepth {
		return ErrFull
	}

	q.seq++
	item.seq = q.seq
	heap.Push(&q.items, item)
	return nil
}

// Dequeue removes and returns the highest priority, earliest arrived item.
// It returns false when the queue is empty and never blocks.
func (q *Queue) Dequeue() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*Item), true
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MaxDepth returns the configured capacity, 0 meaning unbounded.
func (q *Queue) MaxDepth() int {
	return q.config.MaxDepth
}

// Drain removes every waiting item and returns them in dequeue order.
func (q *Queue) Drain() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Item, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(*Item))
	}
	return out
}

// itemHeap orders by priority descending, then by arrival sequence.
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(*Item))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
