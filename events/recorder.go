package events

import (
	"context"
	"sync"
)

// Recorder keeps the most recent events in memory
type Recorder struct {
	// lock guards events and next
	lock sync.RWMutex

	// events ring buffer of recorded events
	events []Event
	next   int
	full   bool
}

// NewRecorder returns a Recorder remembering up to size events
func NewRecorder(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{events: make([]Event, size)}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events[r.next] = event
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Recent returns up to n events, newest first. n <= 0 returns everything recorded.
func (r *Recorder) Recent(n int) []Event {
	r.lock.RLock()
	defer r.lock.RUnlock()

	count := r.next
	if r.full {
		count = len(r.events)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.events)) % len(r.events)
		out = append(out, r.events[idx])
	}
	return out
}
