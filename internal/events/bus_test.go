package events

import "testing"

func TestBusDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTimeline)
	other := bus.Subscribe(EventPlaylist)

	if n := bus.Publish(EventTimeline, Payload{"studio_id": "s1"}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	got := <-sub
	if got["studio_id"] != "s1" {
		t.Fatalf("unexpected payload %v", got)
	}
	select {
	case p := <-other:
		t.Fatalf("playlist subscriber got timeline event %v", p)
	default:
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTimeline)
	for i := 0; i < bus.buffer; i++ {
		bus.Publish(EventTimeline, Payload{"i": i})
	}
	if n := bus.Publish(EventTimeline, Payload{"i": "overflow"}); n != 0 {
		t.Fatalf("full subscriber should be skipped, got %d deliveries", n)
	}
	if len(sub) != bus.buffer {
		t.Fatalf("expected %d buffered events, got %d", bus.buffer, len(sub))
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaylist)
	bus.Unsubscribe(EventPlaylist, sub)

	if bus.Subscribers(EventPlaylist) != 0 {
		t.Fatal("subscriber still registered")
	}
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	// unknown subscribers are ignored
	bus.Unsubscribe(EventPlaylist, make(Subscriber))
}
