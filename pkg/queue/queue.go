package queue

import "errors"

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("queue is full")

// Queue is the hand-off buffer between producers and the single consumer.
type Queue interface {
	Enqueue(item interface{}) error
	Size() int
	// ReadAllMessages removes and returns every pending item in arrival order.
	ReadAllMessages() ([]interface{}, error)
	ClearQueue() error
}
