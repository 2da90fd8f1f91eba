package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(10)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	assert.Equal(t, 3, q.Size())

	messages, err := q.ReadAllMessages()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0, 1, 2}, messages)
	assert.Equal(t, 0, q.Size())

	messages, err = q.ReadAllMessages()
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(2)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	assert.ErrorIs(t, q.Enqueue("c"), ErrQueueFull)

	_, err := q.ReadAllMessages()
	require.NoError(t, err)
	assert.NoError(t, q.Enqueue("c"))
}

func TestInMemoryQueue_DefaultCapacity(t *testing.T) {
	q := NewInMemoryQueue(0)
	assert.Equal(t, DefaultCapacity, q.capacity)
}

func TestInMemoryQueue_ClearQueue(t *testing.T) {
	q := NewInMemoryQueue(4)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.NoError(t, q.ClearQueue())
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueue_DrainedSliceIsNotReused(t *testing.T) {
	q := NewInMemoryQueue(4)
	require.NoError(t, q.Enqueue(1))
	first, err := q.ReadAllMessages()
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(2))
	assert.Equal(t, []interface{}{1}, first)
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(1000)
	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = q.Enqueue(i)
			}
		}()
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		messages, err := q.ReadAllMessages()
		require.NoError(t, err)
		drained += len(messages)
		select {
		case <-done:
			messages, err := q.ReadAllMessages()
			require.NoError(t, err)
			drained += len(messages)
			assert.Equal(t, 500, drained)
			return
		default:
		}
	}
}
