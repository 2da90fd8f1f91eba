package session

import (
	"sort"
	"time"
)

// scheduler runs named callbacks once their deadline has passed.
// It is only used from the consumer goroutine and is not safe for
// concurrent use.
type scheduler struct {
	timers map[string]*timer
	seq    uint64
}

type timer struct {
	name     string
	deadline time.Time
	seq      uint64
	fn       func()
}

func newScheduler() *scheduler {
	return &scheduler{
		timers: make(map[string]*timer),
	}
}

// After schedules fn to run at the first RunDue at or after now+d.
// Scheduling a name that is already pending replaces it.
func (s *scheduler) After(now time.Time, d time.Duration, name string, fn func()) {
	s.seq++
	s.timers[name] = &timer{
		name:     name,
		deadline: now.Add(d),
		seq:      s.seq,
		fn:       fn,
	}
}

func (s *scheduler) Cancel(name string) {
	delete(s.timers, name)
}

func (s *scheduler) Pending(name string) bool {
	_, ok := s.timers[name]
	return ok
}

func (s *scheduler) Len() int {
	return len(s.timers)
}

// RunDue runs every timer whose deadline is not after now, earliest first.
// Timers scheduled by a callback run no earlier than the next RunDue.
func (s *scheduler) RunDue(now time.Time) {
	var due []*timer
	for _, t := range s.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		// skip timers cancelled or replaced by an earlier callback
		if s.timers[t.name] != t {
			continue
		}
		delete(s.timers, t.name)
		t.fn()
	}
}
