// Package live holds the most recent probe result and fans every new one out
// to connected viewers.
package live

import (
	"sync"
	"sync/atomic"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// SubscriberBuffer is how many undelivered results a subscriber may lag
// behind before further results are dropped for it.
const SubscriberBuffer = 16

type Feed struct {
	mu     sync.RWMutex
	latest *domain.ProbeResult
	subs   map[uint64]chan domain.ProbeResult
	nextID uint64

	dropped atomic.Uint64
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]chan domain.ProbeResult)}
}

// Latest returns the most recent result; ok is false until the first one.
func (f *Feed) Latest() (domain.ProbeResult, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return domain.ProbeResult{}, false
	}
	return *f.latest, true
}

// Seed sets the latest result without broadcasting it. Used at startup with
// the newest stored row.
func (f *Feed) Seed(r domain.ProbeResult) {
	f.mu.Lock()
	f.latest = &r
	f.mu.Unlock()
}

// Update replaces the latest result and offers it to every subscriber
// without blocking. A subscriber whose buffer is full misses this result.
func (f *Feed) Update(r domain.ProbeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &r
	for _, ch := range f.subs {
		select {
		case ch <- r:
		default:
			f.dropped.Add(1)
		}
	}
}

// Subscribe registers a viewer. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (f *Feed) Subscribe() (<-chan domain.ProbeResult, func()) {
	ch := make(chan domain.ProbeResult, SubscriberBuffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers is the number of registered viewers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped counts results not delivered to a lagging subscriber.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }
