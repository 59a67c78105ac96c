package events

import "testing"

func TestBus_PublishToSubscriber(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) })

	bus.Publish(New(EventEpisodicAdded, map[string]any{"id": "x"}))

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Type != EventEpisodicAdded || got[0].Payload["id"] != "x" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestBus_TypeFilter(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) }, EventProfileUpdated)

	bus.Publish(New(EventEpisodicAdded, nil))
	bus.Publish(New(EventProfileUpdated, nil))

	if len(got) != 1 || got[0].Type != EventProfileUpdated {
		t.Errorf("expected only profile events, got %+v", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	unsubscribe := bus.Subscribe(func(Event) { count++ })

	bus.Publish(New(EventEpisodicAdded, nil))
	unsubscribe()
	bus.Publish(New(EventEpisodicAdded, nil))

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBus_NilBusIsSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(New(EventTaskFailed, nil))
}
