package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryBus(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()

	bus.Publish(New(TypeUserCreated, map[string]int64{"id": 1}, 7))

	got := <-events
	require.Equal(t, TypeUserCreated, got.Type)
	require.Equal(t, int64(7), got.ActorID)
	require.NotEmpty(t, got.ID)

	unsubscribe()
	unsubscribe()

	_, open := <-events
	require.False(t, open)

	bus.Publish(New(TypeUserDeleted, nil, 0))
}

func TestInMemoryBusDropsWhenFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeSessionCreated, i, 0))
	}

	require.Len(t, events, subscriberBuffer)
}
