// Package progress fans scan events out to any number of observers.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buemura/surface/pkg/types"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Options configures a Broadcaster.
type Options struct {
	Buffer int
	Logger *slog.Logger
	// OnDrop is called for each event discarded because a subscriber was full.
	OnDrop func(scanID string)
}

// Broadcaster is an in-memory publish/subscribe hub keyed by scan id.
// Publish never blocks.
type Broadcaster struct {
	mu      sync.Mutex
	topics  map[string]*topic
	buffer  int
	log     *slog.Logger
	onDrop  func(string)
	dropped atomic.Int64
}

type topic struct {
	subs     map[int]chan types.Event
	next     int
	progress int
	closed   bool
	terminal *types.Event
}

// New creates a Broadcaster.
func New(opts Options) *Broadcaster {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Broadcaster{
		topics: make(map[string]*topic),
		buffer: opts.Buffer,
		log:    opts.Logger,
		onDrop: opts.OnDrop,
	}
}

func (b *Broadcaster) topic(id string) *topic {
	t, ok := b.topics[id]
	if !ok {
		t = &topic{subs: make(map[int]chan types.Event)}
		b.topics[id] = t
	}
	return t
}

// Subscribe registers an observer for scan id. The channel first yields a
// connected event. On a closed topic it yields connected, then the terminal
// event, and is closed. The returned func unsubscribes and is safe to call
// more than once.
func (b *Broadcaster) Subscribe(id string) (<-chan types.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(id)
	ch := make(chan types.Event, b.buffer)
	ch <- types.Event{
		ScanID:   id,
		Stage:    types.StageConnected,
		Log:      "Connected to scan progress stream.",
		Progress: t.progress,
		Time:     time.Now(),
	}

	if t.closed {
		if t.terminal != nil {
			ch <- *t.terminal
		}
		close(ch)
		return ch, func() {}
	}

	key := t.next
	t.next++
	t.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := t.subs[key]; ok {
				delete(t.subs, key)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every current subscriber of ev.ScanID. A subscriber
// whose buffer is full misses the event, unless it is terminal, in which case
// the oldest queued event is discarded instead. Events on a closed topic are
// ignored.
func (b *Broadcaster) Publish(ev types.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(ev.ScanID)
	if t.closed {
		return
	}
	if ev.Progress > t.progress {
		t.progress = ev.Progress
	}
	if ev.Terminal() {
		stored := ev
		t.terminal = &stored
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if !ev.Terminal() {
			b.drop(ev)
			continue
		}
		// The terminal event always gets through: evict the oldest queued
		// event until it fits.
		for {
			select {
			case ch <- ev:
			case old := <-ch:
				b.drop(old)
				continue
			}
			break
		}
	}
}

func (b *Broadcaster) drop(ev types.Event) {
	b.dropped.Add(1)
	if b.onDrop != nil {
		b.onDrop(ev.ScanID)
	}
	b.log.Debug("progress event dropped", "scan_id", ev.ScanID, "stage", ev.Stage)
}

// Close ends the topic for id and closes every subscriber channel. Later
// calls are no-ops.
func (b *Broadcaster) Close(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(id)
	if t.closed {
		return
	}
	t.closed = true
	for key, ch := range t.subs {
		delete(t.subs, key)
		close(ch)
	}
}

// Forget drops all state for id, closing it first.
func (b *Broadcaster) Forget(id string) {
	b.Close(id)
	b.mu.Lock()
	delete(b.topics, id)
	b.mu.Unlock()
}

// Subscribers returns the number of open subscriptions for id.
func (b *Broadcaster) Subscribers(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[id]; ok {
		return len(t.subs)
	}
	return 0
}

// Dropped returns the total number of events discarded for full buffers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
