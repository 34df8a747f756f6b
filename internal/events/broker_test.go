package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroker_PubSub(t *testing.T) {
	broker := NewBroker()

	ch, unsub := broker.Subscribe("session-1")
	defer unsub()

	broker.Publish(Event{SessionID: "session-1", Data: "analyzing"})

	select {
	case received := <-ch:
		assert.Equal(t, "session-1", received.SessionID)
		assert.Equal(t, "analyzing", received.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_IsolatesSessions(t *testing.T) {
	broker := NewBroker()

	ch, unsub := broker.Subscribe("session-1")
	defer unsub()

	broker.Publish(Event{SessionID: "session-2", Data: "other"})

	select {
	case e := <-ch:
		t.Fatalf("received foreign event: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker()

	ch, unsub := broker.Subscribe("session-1")
	unsub()
	unsub()

	broker.Publish(Event{SessionID: "session-1", Data: "late"})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBroker_DropsWhenFull(t *testing.T) {
	broker := NewBroker()
	ch, unsub := broker.Subscribe("s")
	defer unsub()

	for i := 0; i < 20; i++ {
		broker.Publish(Event{SessionID: "s", Data: i})
	}
	assert.Len(t, ch, cap(ch))
}

func TestBroker_CloseEndsSubscriptions(t *testing.T) {
	broker := NewBroker()
	first, unsubFirst := broker.Subscribe("session-1")
	second, unsubSecond := broker.Subscribe("session-2")

	broker.Close()

	_, ok := <-first
	assert.False(t, ok)
	_, ok = <-second
	assert.False(t, ok)

	unsubFirst()
	unsubSecond()
	broker.Publish(Event{SessionID: "session-1", Data: "after close"})

	late, unsubLate := broker.Subscribe("session-1")
	defer unsubLate()
	_, ok = <-late
	assert.False(t, ok)
}
