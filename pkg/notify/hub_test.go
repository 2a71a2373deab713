package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToEachSubscriber(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe("u1")
	b := hub.Subscribe("u1")
	other := hub.Subscribe("u2")
	defer a.Unsubscribe()
	defer b.Unsubscribe()
	defer other.Unsubscribe()

	require.NoError(t, hub.Publish(context.Background(), Message{UserID: "u1", Type: "match_found"}))

	assert.Equal(t, "match_found", (<-a.C).Type)
	assert.Equal(t, "match_found", (<-b.C).Type)
	assert.Empty(t, other.C)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe("u1")
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		hub.Deliver(Message{UserID: "u1"})
	}

	assert.Len(t, sub.C, 2)
	assert.Equal(t, int64(3), hub.Dropped())
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("u1")
	assert.Equal(t, 1, hub.Subscribers("u1"))

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, open := <-sub.C
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers("u1"))
	assert.Zero(t, hub.Deliver(Message{UserID: "u1"}))
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("u1")

	hub.Close()
	_, open := <-sub.C
	assert.False(t, open)

	late := hub.Subscribe("u1")
	_, open = <-late.C
	assert.False(t, open)

	sub.Unsubscribe()
}

func TestHubConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub(8)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		sub := hub.Subscribe("u1")
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Deliver(Message{UserID: "u1"})
			}
		}()
		go func() {
			defer wg.Done()
			sub.Unsubscribe()
		}()
	}

	wg.Wait()
	assert.Zero(t, hub.Subscribers("u1"))
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	for i := 0; i < 3; i++ {
		_, err := c.Incr(ctx, "u1")
		require.NoError(t, err)
	}

	n, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, c.Reset(ctx, "u1"))
	n, _ = c.Get(ctx, "u1")
	assert.Zero(t, n)
}
