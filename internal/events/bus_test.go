package events

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
		return Event{}
	}
}

func TestBus_FanOut(t *testing.T) {
	b := NewBus()
	a, cancelA := b.Subscribe()
	defer cancelA()
	c, cancelC := b.Subscribe()
	defer cancelC()

	b.Publish(Event{Kind: PeerJoined, Peer: "bob"})

	for _, ch := range []<-chan Event{a, c} {
		ev := recv(t, ch)
		if ev.Kind != PeerJoined || ev.Peer != "bob" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelC()

	cancelA()
	cancelA() // idempotent

	b.Publish(Event{Kind: MicToggled, MicOn: true})

	if ev := recv(t, c); ev.Kind != MicToggled || !ev.MicOn {
		t.Fatalf("live subscriber missed event: %+v", ev)
	}
	if _, ok := <-a; ok {
		t.Fatalf("canceled subscriber channel must be closed")
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(Event{Kind: PeerLeft, Peer: "bob"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe()
	b.Close()
	b.Publish(Event{Kind: PeerJoined, Peer: "bob"}) // must not panic
	if _, ok := <-ch; ok {
		t.Fatalf("subscriber channel must be closed after Close")
	}
}
