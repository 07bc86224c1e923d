package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(buffer int) *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)), buffer)
}

func TestPublishFansOut(t *testing.T) {
	bus := newTestBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, bus.Subscribers())

	bus.Publish(models.Change{Kind: models.ChangeInserted, Booking: models.Booking{ID: "x"}})

	for _, sub := range []<-chan models.Change{a, b} {
		got := <-sub
		assert.Equal(t, "x", got.Booking.ID)
		assert.False(t, got.At.IsZero())
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	bus := newTestBus(1)
	sub, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	bus.Publish(models.Change{Kind: models.ChangeInserted, Booking: models.Booking{ID: "1"}})
	bus.Publish(models.Change{Kind: models.ChangeInserted, Booking: models.Booking{ID: "2"}})

	got, ok := <-sub
	require.True(t, ok)
	assert.Equal(t, "1", got.Booking.ID)

	_, ok = <-sub
	assert.False(t, ok)
	assert.Zero(t, bus.Subscribers())
}

func TestUnsubscribeOnContextDone(t *testing.T) {
	bus := newTestBus(1)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.Zero(t, bus.Subscribers())
}

func TestClose(t *testing.T) {
	bus := newTestBus(1)
	sub, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	bus.Close()
	_, ok := <-sub
	assert.False(t, ok)

	_, err = bus.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
