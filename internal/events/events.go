package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"booking-service/internal/metrics"
	"booking-service/internal/models"
)

var ErrClosed = errors.New("event bus is closed")

// Bus fans booking changes out to subscribers. Publish never blocks: a
// subscriber whose buffer is full is dropped and its channel closed, so it
// knows to resubscribe and reload.
type Bus struct {
	log    *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[int]chan models.Change
	nextID int
	closed bool
}

func NewBus(log *slog.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		log:    log,
		buffer: buffer,
		subs:   make(map[int]chan models.Change),
	}
}

// Subscribe returns a channel of changes published after the call. The
// channel is closed when ctx is done, when the subscriber falls behind or
// when the bus closes.
func (b *Bus) Subscribe(ctx context.Context) (<-chan models.Change, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	ch := make(chan models.Change, b.buffer)
	b.subs[id] = ch
	n := len(b.subs)
	b.mu.Unlock()

	metrics.SetStreamSubscribers(n)

	go func() {
		<-ctx.Done()
		b.remove(id)
	}()

	return ch, nil
}

func (b *Bus) Publish(ch models.Change) {
	if ch.At.IsZero() {
		ch.At = time.Now()
	}

	b.mu.Lock()
	var dropped []int
	for id, sub := range b.subs {
		select {
		case sub <- ch:
		default:
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		close(b.subs[id])
		delete(b.subs, id)
	}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.IncChangePublished(string(ch.Kind))
	if len(dropped) > 0 {
		metrics.SetStreamSubscribers(n)
		b.log.Warn("dropped slow subscribers", slog.Int("count", len(dropped)))
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		close(sub)
		delete(b.subs, id)
	}
	n := len(b.subs)
	b.mu.Unlock()

	if ok {
		metrics.SetStreamSubscribers(n)
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later Subscribe calls fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub)
		delete(b.subs, id)
	}
	metrics.SetStreamSubscribers(0)
}
