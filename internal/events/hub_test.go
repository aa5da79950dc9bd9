package events

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	defer cancel()

	h.Publish("u1", Event{Type: TypeCallRequested, SessionID: "s1", ChatID: "c1", CallerID: "u2"})

	select {
	case ev := <-ch:
		if ev.Type != TypeCallRequested {
			t.Fatalf("type = %q, want %q", ev.Type, TypeCallRequested)
		}
		if ev.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestPublishIsScopedToUser(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	defer cancel()

	h.Publish("u2", Event{Type: TypeCallEnded, SessionID: "s1"})

	select {
	case ev := <-ch:
		t.Fatalf("got %q event meant for another user", ev.Type)
	default:
	}
}

func TestAllSubscribersOfUserReceive(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("u1")
	defer cancelA()
	b, cancelB := h.Subscribe("u1")
	defer cancelB()

	h.Publish("u1", Event{Type: TypeCallAccepted, SessionID: "s1"})

	for i, ch := range []<-chan Event{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestCancelClosesChannelAndUnsubscribes(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")

	cancel()
	cancel() // second call is a no-op

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	if n := h.SubscriberCount("u1"); n != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", n)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("u1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+10; i++ {
			h.Publish("u1", Event{Type: TypeCallRequested, SessionID: "s"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a saturated subscriber")
	}
}
