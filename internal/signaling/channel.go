package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/metrics"
)

const (
	defaultReconnectDelay = 3 * time.Second
	writeDeadline         = 5 * time.Second
	sendQueueSize         = 32
)

var ErrBackpressure = errors.New("backpressure")

// Channel is the persistent signaling transport. It dials the endpoint,
// pumps JSON envelopes both ways and redials forever with a fixed delay
// whenever the connection drops. Sends while the transport is not open
// are dropped on purpose: callers get no delivery guarantee from this
// layer and must not queue on it.
type Channel struct {
	url        string
	delay      time.Duration
	pingPeriod time.Duration
	dialer     *websocket.Dialer

	onMessage func(Envelope)
	onOpen    func()

	mu   sync.RWMutex
	conn *websocket.Conn
	send chan []byte
	open bool
}

func NewChannel(url string, delay, pingPeriod time.Duration) *Channel {
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &Channel{
		url:        url,
		delay:      delay,
		pingPeriod: pingPeriod,
		dialer:     websocket.DefaultDialer,
	}
}

// OnMessage sets the inbound dispatch callback. Must be set before Run.
func (ch *Channel) OnMessage(fn func(Envelope)) { ch.onMessage = fn }

// OnOpen fires after every successful dial, including redials. The
// client uses it to re-announce room presence.
func (ch *Channel) OnOpen(fn func()) { ch.onOpen = fn }

// Open reports whether an established connection currently exists.
func (ch *Channel) Open() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.open
}

// Run owns the dial/serve/redial loop until ctx is canceled. Dial
// failures and dropped connections are both retried on the same fixed
// delay; nothing surfaces to the caller from here.
func (ch *Channel) Run(ctx context.Context) {
	first := true
	for {
		if !first {
			metrics.SignalReconnects.Inc()
		}
		conn, _, err := ch.dialer.DialContext(ctx, ch.url, nil)
		if err != nil {
			log.Error().Err(err).Str("module", "signaling").Str("url", ch.url).Msg("dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(ch.delay):
			}
			continue
		}
		first = false
		log.Info().Str("module", "signaling").Str("url", ch.url).Msg("connected")
		ch.serve(ctx, conn)
		select {
		case <-ctx.Done():
			return
		case <-time.After(ch.delay):
		}
	}
}

func (ch *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	send := make(chan []byte, sendQueueSize)

	ch.mu.Lock()
	ch.conn = conn
	ch.send = send
	ch.open = true
	ch.mu.Unlock()

	if ch.onOpen != nil {
		ch.onOpen()
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblocks the read loop when the surrounding context goes away.
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	go ch.writePump(connCtx, conn, send)
	ch.readPump(conn)

	ch.mu.Lock()
	ch.open = false
	ch.conn = nil
	ch.send = nil
	ch.mu.Unlock()
}

func (ch *Channel) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("module", "signaling").Msg("read error, connection gone")
			return
		}
		env, err := Parse(data)
		if err != nil {
			log.Error().Err(err).Str("module", "signaling").Msg("bad inbound message")
			continue
		}
		metrics.SignalMessages.WithLabelValues("in", string(env.Type)).Inc()
		if ch.onMessage != nil {
			ch.onMessage(env)
		}
	}
}

func (ch *Channel) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	var pingC <-chan time.Time
	if ch.pingPeriod > 0 {
		ticker := time.NewTicker(ch.pingPeriod)
		defer ticker.Stop()
		pingC = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-pingC:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				log.Warn().Err(err).Str("module", "signaling").Msg("ping failed")
				return
			}
		case data, ok := <-send:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "signaling").Msg("set write deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signaling").Msg("write error")
				return
			}
		}
	}
}

// TrySend enqueues one envelope. A closed transport drops the message
// silently (logged at debug, counted); a full queue is reported as
// ErrBackpressure so the caller can decide what a slow link means.
func (ch *Channel) TrySend(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()
	if !ch.open {
		metrics.SignalDropped.Inc()
		log.Debug().Str("module", "signaling").Str("type", string(env.Type)).Msg("dropped, transport not open")
		return nil
	}
	select {
	case ch.send <- data:
	default:
		return ErrBackpressure
	}
	metrics.SignalMessages.WithLabelValues("out", string(env.Type)).Inc()
	return nil
}
