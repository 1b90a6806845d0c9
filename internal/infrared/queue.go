package infrared

import (
	"image"
	"sync"
)

// QueueCapacity bounds the frames buffered between the device callback and
// the consumer.
const QueueCapacity = 2

// Queue is a bounded FIFO that drops its oldest entry when a push would
// exceed capacity. Push never blocks.
type Queue struct {
	mu      sync.Mutex
	items   []*image.RGBA
	cap     int
	dropped uint64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{cap: capacity, items: make([]*image.RGBA, 0, capacity)}
}

func (q *Queue) Push(img *image.RGBA) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.cap {
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, img)
}

// Pop returns the oldest queued frame.
func (q *Queue) Pop() (*image.RGBA, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	img := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return img, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
}
