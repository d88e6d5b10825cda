package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the planner.
const (
	TaskCreated     = "task.created"
	TaskDeleted     = "task.deleted"
	TasksMerged     = "task.merged"
	ChunksCreated   = "chunks.created"
	ChunkUpdated    = "chunk.updated"
	ChunkDeleted    = "chunk.deleted"
	ChunkSplit      = "chunk.split"
	SeriesScheduled = "series.scheduled"
	SeriesCompleted = "series.completed"
	AdvanceFinished = "advance.finished"
)

// Event is an in-memory notification about a committed change.
//
// Contract:
//   - Publish never blocks and is only called after the transaction commits.
//   - Subscribers get buffered channels; a full buffer drops the event.
//
// Data holds the affected records (ids, chunks, reports).
type Event struct {
	Type   string
	UserID int64
	Time   time.Time
	Data   any
}

type Bus interface {
	Publish(e Event)
	// Subscribe delivers events of the given types, or every event when no
	// type is given.
	Subscribe(buffer int, types ...string) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

// Nop discards everything; used where no listener is wired.
func Nop() Bus { return nopBus{} }

type subscriber struct {
	ch    chan Event
	types map[string]bool
}

func (s *subscriber) wants(t string) bool { return len(s.types) == 0 || s.types[t] }

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Type) {
			targets = append(targets, s.ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		// A concurrent unsubscribe may close ch between snapshot and send.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	if len(types) > 0 {
		s.types = make(map[string]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

type nopBus struct{}

func (nopBus) Publish(Event) {}

func (nopBus) Subscribe(int, ...string) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
