// Package client composes signaling, local media, the peer mesh and
// per-peer negotiation into one caller-owned voice session client.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/domain"
	"github.com/arezvov/voicemesh/internal/events"
	"github.com/arezvov/voicemesh/internal/media"
	"github.com/arezvov/voicemesh/internal/mesh"
	"github.com/arezvov/voicemesh/internal/playback"
	"github.com/arezvov/voicemesh/internal/signaling"
)

var ErrSessionActive = errors.New("a session is already active")

// Signal is the outbound half of the signaling transport the client
// needs. The reconnect loop stays with the transport.
type Signal interface {
	TrySend(signaling.Envelope) error
	Open() bool
}

type Options struct {
	Signal      Signal
	Source      media.CaptureSource
	Player      playback.Player
	WebRTC      webrtc.Configuration
	Constraints media.Constraints
}

// SessionInfo is the diagnostics view of the current membership.
type SessionInfo struct {
	RoomID domain.RoomID `json:"roomId"`
	SelfID domain.UserID `json:"selfId"`
	Joined bool          `json:"joined"`
	MicOn  bool          `json:"micOn"`
}

// Client is the voice session client. One instance holds at most one
// active room membership; the caller owns its lifecycle.
type Client struct {
	signal Signal
	media  *media.Manager
	mesh   *mesh.Mesh
	bus    *events.Bus
	player playback.Player

	constraints media.Constraints

	mu     sync.Mutex
	roomID domain.RoomID
	selfID domain.UserID
	joined bool
}

func New(opts Options) *Client {
	c := &Client{
		signal:      opts.Signal,
		media:       media.NewManager(opts.Source),
		bus:         events.NewBus(),
		player:      opts.Player,
		constraints: opts.Constraints,
	}
	c.mesh = mesh.New(mesh.Config{
		WebRTC:        opts.WebRTC,
		LocalTracks:   c.localTracks,
		Player:        opts.Player,
		SendCandidate: c.sendCandidate,
		OnStalled:     c.onLinkStalled,
	})
	return c
}

func (c *Client) localTracks() []*media.Track { return c.media.Tracks() }

// JoinRoom acquires the microphone and announces presence. Media
// denial aborts the join and propagates; signaling delivery does not
// (the announce is re-sent on every transport open).
func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, selfID domain.UserID) error {
	if err := roomID.Validate(); err != nil {
		return err
	}
	if err := selfID.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.mu.Unlock()

	if err := c.media.Acquire(ctx, c.constraints); err != nil {
		return err
	}

	c.mu.Lock()
	c.roomID = roomID
	c.selfID = selfID
	c.joined = true
	c.mu.Unlock()

	log.Info().Str("module", "client").Str("room", string(roomID)).Str("self", string(selfID)).Msg("joining room")
	c.sendSignal(signaling.JoinRoom(roomID, selfID))
	return nil
}

// ToggleMicrophone flips the local mute state, notifies peers and
// returns the new state.
func (c *Client) ToggleMicrophone() (bool, error) {
	on, err := c.media.Toggle()
	if err != nil {
		return false, err
	}
	c.sendSignal(signaling.MicToggle(on))
	c.bus.Publish(events.Event{Kind: events.MicToggled, MicOn: on})
	return on, nil
}

// LeaveRoom withdraws presence, tears down every link and releases the
// capture device. Idempotent.
func (c *Client) LeaveRoom() {
	c.mu.Lock()
	wasJoined := c.joined
	roomID, selfID := c.roomID, c.selfID
	c.roomID, c.selfID = "", ""
	c.joined = false
	c.mu.Unlock()

	if wasJoined {
		c.sendSignal(signaling.LeaveRoom(roomID, selfID))
		log.Info().Str("module", "client").Str("room", string(roomID)).Msg("leaving room")
	}
	c.mesh.CloseAll()
	c.media.Release()
}

// Close leaves the room and drops every event subscriber.
func (c *Client) Close() {
	c.LeaveRoom()
	c.bus.Close()
}

// Events returns the subscription surface; any number of consumers may
// subscribe concurrently.
func (c *Client) Events() *events.Bus { return c.bus }

func (c *Client) Session() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SessionInfo{
		RoomID: c.roomID,
		SelfID: c.selfID,
		Joined: c.joined,
		MicOn:  c.media.MicOn(),
	}
}

func (c *Client) Peers() []mesh.LinkInfo { return c.mesh.Snapshot() }

// Announce re-sends room presence; wired to the transport's open hook
// so a reconnect re-registers this participant with the server.
func (c *Client) Announce() {
	c.mu.Lock()
	joined, roomID, selfID := c.joined, c.roomID, c.selfID
	c.mu.Unlock()
	if !joined {
		return
	}
	log.Info().Str("module", "client").Str("room", string(roomID)).Msg("re-announcing presence")
	c.sendSignal(signaling.JoinRoom(roomID, selfID))
}

// HandleSignal dispatches one inbound signaling message. The transport
// calls it from its read loop, so messages are handled in arrival
// order. Messages that were in flight when the session ended are
// dropped here; answering one would re-register this client with the
// remote after presence was withdrawn.
func (c *Client) HandleSignal(env signaling.Envelope) {
	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()
	if !joined {
		log.Debug().Str("module", "client").Str("type", string(env.Type)).Msg("no active session, signal dropped")
		return
	}

	switch env.Type {
	case signaling.TypeUserJoined:
		c.handleUserJoined(env.UserID)
	case signaling.TypeUserLeft:
		c.handleUserLeft(env.UserID)
	case signaling.TypeUserMicToggle:
		c.handleUserMicToggle(env)
	case signaling.TypeOffer:
		c.handleOffer(env)
	case signaling.TypeAnswer:
		c.handleAnswer(env)
	case signaling.TypeCandidate:
		c.handleCandidate(env)
	default:
		log.Warn().Str("module", "client").Str("type", string(env.Type)).Msg("unexpected signal")
	}
}

func (c *Client) sendSignal(env signaling.Envelope) {
	if err := c.signal.TrySend(env); err != nil {
		log.Error().Err(err).Str("module", "client").Str("type", string(env.Type)).Msg("signal send")
	}
}

func (c *Client) sendCandidate(remote domain.UserID, init webrtc.ICECandidateInit) {
	c.sendSignal(signaling.ICECandidate(remote, init))
}

func (c *Client) self() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}
