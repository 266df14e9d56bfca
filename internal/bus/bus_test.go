package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/bus"
)

func TestPublishTo_OnlyReachesScopedAccount(t *testing.T) {
	b := bus.New()
	alice := b.Subscribe("alice", 8)
	bob := b.Subscribe("bob", 8)

	b.PublishTo("alice", bus.KindBalanceUpdate, "alice-event")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ev, ok := alice.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice-event", ev.Data)

	shortCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, ok = bob.Next(shortCtx)
	assert.False(t, ok, "bob never subscribed to alice's events")
}

func TestPublishBroadcast_ReachesEverySubscriber(t *testing.T) {
	b := bus.New()
	a := b.Subscribe("alice", 8)
	c := b.Subscribe("bob", 8)

	b.PublishBroadcast(bus.KindOrderBookUpdate, "book")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for _, sub := range []*bus.Subscriber{a, c} {
		ev, ok := sub.Next(ctx)
		require.True(t, ok)
		assert.Equal(t, "book", ev.Data)
	}
}

func TestOverflow_DropsOldestOfSameKindFirst(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("alice", 2)

	b.PublishTo("alice", bus.KindFill, "fill-1")
	b.PublishTo("alice", bus.KindBalanceUpdate, "balance-1")
	// Queue full (cap 2); pushing another fill should evict fill-1, not
	// balance-1, since a same-kind event is preferred for eviction.
	b.PublishTo("alice", bus.KindFill, "fill-2")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	first, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "balance-1", first.Data, "balance-1 survives, fill-1 was evicted")

	second, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "fill-2", second.Data)

	assert.True(t, sub.Lag(), "overflow must set the lag flag")
	assert.False(t, sub.Lag(), "Lag resets after being read")
}

func TestOverflow_DropsOldestOverallWhenNoSameKindExists(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("alice", 2)

	b.PublishTo("alice", bus.KindFill, "fill-1")
	b.PublishTo("alice", bus.KindBalanceUpdate, "balance-1")
	b.PublishTo("alice", bus.KindOrdersUpdate, "orders-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	first, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "balance-1", first.Data, "oldest (fill-1) dropped since no fill dupes exist")
}

func TestUnsubscribe_ClosesSubscriber(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("alice", 8)
	assert.Equal(t, 1, b.Count())

	b.Unsubscribe(sub.ID())
	assert.Equal(t, 0, b.Count())

	_, ok := sub.Next(context.Background())
	assert.False(t, ok)
}
