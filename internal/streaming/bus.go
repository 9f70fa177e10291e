package streaming

import (
	"sync"
	"sync/atomic"
)

// subscriber holds one consumer's channel and optional type filter.
type subscriber struct {
	ch    chan Event
	types map[EventType]bool // empty means all types
}

// Bus is the executor pool's event bus: each task body is a single producer
// publishing into a shared fan-out to any number of subscribers (UI, logs,
// test harness). Per task, events are delivered in emission order; no
// ordering is guaranteed across tasks.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// New creates a Bus whose subscriber channels are bounded to bufferSize.
// Passing 0 gets a reasonable default.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe returns a channel receiving events of the given types (or all
// events, if none are given).
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := &subscriber{ch: make(chan Event, b.bufferSize), types: make(map[EventType]bool, len(types))}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes and closes a previously-returned channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			continue
		}
		kept = append(kept, sub)
	}
	b.subscribers = kept
}

// Publish delivers event to every matching subscriber. TaskProgress events
// may be dropped (oldest first) if a subscriber's buffer is full; every
// other event type blocks-free best-effort but is never silently discarded
// by the ring-buffer path — terminal events (TaskCompleted/TaskFailed/
// TaskSkipped) are always attempted with a final blocking send to guarantee
// delivery.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !b.matches(sub, event) {
			continue
		}
		b.deliver(sub, event)
	}
}

func (b *Bus) matches(sub *subscriber, event Event) bool {
	return len(sub.types) == 0 || sub.types[event.EventType()]
}

func (b *Bus) deliver(sub *subscriber, event Event) {
	if event.EventType() != TypeTaskProgress {
		// Every event type except TaskProgress blocks until delivered —
		// terminal events (TaskCompleted/TaskFailed/TaskSkipped) are never
		// dropped, and a bounded bus is expected to be sized so the others
		// don't either.
		sub.ch <- event
		return
	}

	select {
	case sub.ch <- event:
		return
	default:
	}
	select {
	case <-sub.ch: // drop oldest
		atomic.AddInt64(&b.droppedCount, 1)
	default:
	}
	select {
	case sub.ch <- event:
	default:
		atomic.AddInt64(&b.droppedCount, 1)
	}
}

// DroppedCount returns how many TaskProgress events have been discarded
// across all subscribers due to full buffers.
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close closes every subscriber channel. Publish becomes a no-op afterward.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}
