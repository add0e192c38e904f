// Package events fans client events out to any number of subscribers.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/domain"
)

type Kind string

const (
	MicToggled     Kind = "mic-toggled"
	PeerJoined     Kind = "peer-joined"
	PeerLeft       Kind = "peer-left"
	PeerMicToggled Kind = "peer-mic-toggled"
	PeerFailed     Kind = "peer-failed"
)

type Event struct {
	Kind  Kind
	Peer  domain.UserID
	MicOn bool
}

const subscriberBuffer = 16

// Bus delivers every published event to every live subscriber.
// Delivery is non-blocking: a subscriber that stopped draining loses
// events rather than stalling the client.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and its cancel func. Cancel is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("module", "events").Str("kind", string(ev.Kind)).Int("sub", id).Msg("slow subscriber, event dropped")
		}
	}
}

// Close drops every subscriber. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
