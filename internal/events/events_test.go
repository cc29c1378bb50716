package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublished(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(IndexingStarted{OperationID: "op1", Collection: "code", TotalFiles: 3})

	select {
	case e := <-ch:
		started, ok := e.(IndexingStarted)
		require.True(t, ok)
		assert.Equal(t, "op1", started.OperationID)
		assert.Equal(t, 3, started.TotalFiles)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTypeFilter(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TypeIndexingCompleted)
	defer cancel()

	bus.Publish(IndexingProgress{OperationID: "op1", ProcessedFiles: 1})
	bus.Publish(IndexingCompleted{OperationID: "op1", Collection: "code", Indexed: 2})

	select {
	case e := <-ch:
		assert.Equal(t, TypeIndexingCompleted, e.Type())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event %s", e.Type())
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(IndexingProgress{ProcessedFiles: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	bus.Publish(ConfigReloaded{Section: "providers", Timestamp: time.Now()})
}
