package queue

import "sync"

const (
	// DefaultCapacity is the capacity used when none is given
	DefaultCapacity = 1024
)

// InMemoryQueue implements an in-memory queue.
// The mutex is the only synchronization point between the goroutines that
// enqueue and the goroutine that drains.
type InMemoryQueue struct {
	lock     sync.Mutex
	items    []interface{}
	capacity int
}

// NewInMemoryQueue creates a new queue holding at most capacity items.
// A capacity of zero or less uses DefaultCapacity.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryQueue{
		items:    make([]interface{}, 0, 16),
		capacity: capacity,
	}
}

// Enqueue adds an item to the end of the queue.
func (q *InMemoryQueue) Enqueue(item interface{}) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, item)
	return nil
}

// Size returns the current size of the queue.
func (q *InMemoryQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// ReadAllMessages reads all pending messages in the queue and clears it
// in one step.
func (q *InMemoryQueue) ReadAllMessages() ([]interface{}, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.items) == 0 {
		return nil, nil
	}
	messages := q.items
	q.items = make([]interface{}, 0, cap(messages))
	return messages, nil
}

// ClearQueue clears all messages from the queue.
func (q *InMemoryQueue) ClearQueue() error {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.items = q.items[:0]
	return nil
}
