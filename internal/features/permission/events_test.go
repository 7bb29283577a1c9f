package permission

import "testing"

func TestEventHubFanOut(t *testing.T) {
	hub := NewEventHub()

	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	event := GrantEvent{Scope: ScopeDocument, Action: "created", GrantID: "g1"}
	hub.Publish(event)

	if got := <-first; got != event {
		t.Errorf("first subscriber got %+v, want %+v", got, event)
	}
	if got := <-second; got != event {
		t.Errorf("second subscriber got %+v, want %+v", got, event)
	}
}

func TestEventHubUnsubscribe(t *testing.T) {
	hub := NewEventHub()

	events, cancel := hub.Subscribe()
	cancel()
	// Second cancel is a no-op, not a double close
	cancel()

	if _, ok := <-events; ok {
		t.Error("cancelled subscriber channel must be closed")
	}

	// Publishing with no subscribers must not panic or block
	hub.Publish(GrantEvent{Scope: ScopeSystem, Action: "deleted", GrantID: "g2"})
}

func TestEventHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewEventHub()

	events, cancel := hub.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; extra events are dropped, not blocked on
	for i := 0; i < 100; i++ {
		hub.Publish(GrantEvent{Scope: ScopeDocument, Action: "created", GrantID: "g"})
	}

	received := 0
	for {
		select {
		case <-events:
			received++
		default:
			if received == 0 || received > 16 {
				t.Errorf("received %d events, want between 1 and buffer size", received)
			}
			return
		}
	}
}
