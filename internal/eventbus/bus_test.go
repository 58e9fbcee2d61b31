package eventbus

import "testing"

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New(4)
	chA, unsubA := b.Subscribe()
	defer unsubA()
	chB, unsubB := b.Subscribe()
	defer unsubB()

	b.Publish(Event{Kind: KindSnapshotStarted})

	if ev := <-chA; ev.Kind != KindSnapshotStarted {
		t.Fatalf("subscriber A missed the event")
	}
	if ev := <-chB; ev.Kind != KindSnapshotStarted {
		t.Fatalf("subscriber B missed the event")
	}
}

func TestPublishDropsOnlyForFullSubscriber(t *testing.T) {
	b := New(1)
	slow, unsub := b.Subscribe()
	defer unsub()

	b.Publish(Event{Kind: KindFileEvent, Payload: 1})
	b.Publish(Event{Kind: KindFileEvent, Payload: 2}) // slow's buffer is full: this one drops

	first := <-slow
	if first.Payload != 1 {
		t.Fatalf("expected the first event to survive, got %v", first.Payload)
	}
	select {
	case ev := <-slow:
		t.Fatalf("expected the second event to have been dropped, got %v", ev.Payload)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(4)
	ch, unsubscribe := b.Subscribe()
	unsubscribe()

	b.Publish(Event{Kind: KindFileEvent})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatal("expected no subscribers after unsubscribe")
	}
}
