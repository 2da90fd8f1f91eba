package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunDueInOrder(t *testing.T) {
	s := newScheduler()
	start := time.Unix(0, 0)
	var got []string
	s.After(start, 20*time.Millisecond, "b", func() { got = append(got, "b") })
	s.After(start, 10*time.Millisecond, "a", func() { got = append(got, "a") })
	s.After(start, time.Second, "c", func() { got = append(got, "c") })

	s.RunDue(start.Add(5 * time.Millisecond))
	assert.Empty(t, got)

	s.RunDue(start.Add(20 * time.Millisecond))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.True(t, s.Pending("c"))
	assert.Equal(t, 1, s.Len())
}

func TestScheduler_ReplaceAndCancel(t *testing.T) {
	s := newScheduler()
	start := time.Unix(0, 0)
	calls := 0
	s.After(start, 10*time.Millisecond, "hit", func() { calls++ })
	s.After(start.Add(5*time.Millisecond), 10*time.Millisecond, "hit", func() { calls += 10 })

	s.RunDue(start.Add(12 * time.Millisecond))
	assert.Equal(t, 0, calls)
	s.RunDue(start.Add(15 * time.Millisecond))
	assert.Equal(t, 10, calls)

	s.After(start, 0, "gone", func() { calls++ })
	s.Cancel("gone")
	s.RunDue(start.Add(time.Hour))
	assert.Equal(t, 10, calls)
}

func TestScheduler_CallbackCancelsLaterTimer(t *testing.T) {
	s := newScheduler()
	start := time.Unix(0, 0)
	var got []string
	s.After(start, time.Millisecond, "first", func() {
		got = append(got, "first")
		s.Cancel("second")
	})
	s.After(start, 2*time.Millisecond, "second", func() { got = append(got, "second") })

	s.RunDue(start.Add(time.Second))
	assert.Equal(t, []string{"first"}, got)
}

func TestScheduler_CallbackSchedulesForNextRun(t *testing.T) {
	s := newScheduler()
	start := time.Unix(0, 0)
	calls := 0
	s.After(start, 0, "again", func() {
		calls++
		s.After(start, 0, "again", func() { calls++ })
	})

	s.RunDue(start)
	assert.Equal(t, 1, calls)
	s.RunDue(start)
	assert.Equal(t, 2, calls)
}
