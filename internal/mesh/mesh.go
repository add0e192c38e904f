// Package mesh tracks one peer link per remote participant and keeps
// the map consistent with room membership.
package mesh

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/domain"
	"github.com/arezvov/voicemesh/internal/media"
	"github.com/arezvov/voicemesh/internal/metrics"
	"github.com/arezvov/voicemesh/internal/playback"
	"github.com/arezvov/voicemesh/internal/rtc"
)

// Link is one direct media connection to one remote participant. The
// connection is exclusively owned; it is never shared between links.
type Link struct {
	Remote    domain.UserID
	Conn      *rtc.Connection
	Initiator bool
	Peer      *domain.Peer
}

// LinkInfo is a read-only view for diagnostics.
type LinkInfo struct {
	Remote    domain.UserID `json:"remote"`
	Initiator bool          `json:"initiator"`
	State     string        `json:"state"`
	MicOn     bool          `json:"micOn"`
}

type Config struct {
	WebRTC webrtc.Configuration

	// LocalTracks is consulted at link creation; an empty result means
	// the inbound/answer path runs without outbound tracks.
	LocalTracks func() []*media.Track

	Player playback.Player

	SendCandidate func(remote domain.UserID, init webrtc.ICECandidateInit)

	// OnStalled reports a link whose connection hit a terminal state,
	// with the attempt count for that remote since the last good
	// connect. The owner decides whether to renegotiate.
	OnStalled func(remote domain.UserID, attempt int)
}

type Mesh struct {
	cfg Config

	mu     sync.Mutex
	links  map[domain.UserID]*Link
	stalls map[domain.UserID]int
}

func New(cfg Config) *Mesh {
	return &Mesh{
		cfg:    cfg,
		links:  make(map[domain.UserID]*Link),
		stalls: make(map[domain.UserID]int),
	}
}

// CreateLink builds the connection for a remote participant and
// registers its handlers. Creation is an upsert: a pre-existing link
// for the same remote is closed first, so duplicate join notifications
// replace instead of duplicate.
func (m *Mesh) CreateLink(remote domain.UserID, initiator bool) (*Link, error) {
	conn, err := rtc.NewConnection(m.cfg.WebRTC, remote)
	if err != nil {
		return nil, err
	}

	link := &Link{
		Remote:    remote,
		Conn:      conn,
		Initiator: initiator,
		Peer:      domain.NewPeer(remote),
	}

	if m.cfg.LocalTracks != nil {
		for _, t := range m.cfg.LocalTracks() {
			if err := conn.AddLocalTrack(t.Local()); err != nil {
				conn.Close()
				return nil, err
			}
		}
	}

	conn.OnICECandidate(func(init webrtc.ICECandidateInit) {
		if m.cfg.SendCandidate != nil {
			m.cfg.SendCandidate(remote, init)
		}
	})

	conn.OnTrack(func(track *webrtc.TrackRemote) {
		if m.cfg.Player != nil {
			m.cfg.Player.Play(remote, track)
		}
	})

	conn.OnStateChange(func(s webrtc.PeerConnectionState) {
		m.handleState(link, s)
	})

	conn.Start()

	m.mu.Lock()
	old, existed := m.links[remote]
	delete(m.links, remote)
	m.mu.Unlock()

	// The predecessor is fully retired before the new link is
	// published: stopping its playback after the new link's OnTrack
	// fires would kill the fresh drain.
	if existed {
		log.Warn().Str("module", "mesh").Str("peer", string(remote)).Msg("replacing existing link")
		old.Conn.Close()
		if m.cfg.Player != nil {
			m.cfg.Player.Stop(remote)
		}
	}

	m.mu.Lock()
	m.links[remote] = link
	metrics.ActivePeerLinks.Set(float64(len(m.links)))
	m.mu.Unlock()

	log.Info().Str("module", "mesh").Str("peer", string(remote)).Bool("initiator", initiator).Msg("link created")
	return link, nil
}

func (m *Mesh) handleState(link *Link, s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		m.mu.Lock()
		delete(m.stalls, link.Remote)
		m.mu.Unlock()
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		m.mu.Lock()
		// A state event for a replaced or already-removed link is stale.
		if m.links[link.Remote] != link {
			m.mu.Unlock()
			return
		}
		delete(m.links, link.Remote)
		metrics.ActivePeerLinks.Set(float64(len(m.links)))
		m.stalls[link.Remote]++
		attempt := m.stalls[link.Remote]
		m.mu.Unlock()

		log.Warn().Str("module", "mesh").Str("peer", string(link.Remote)).
			Str("state", s.String()).Int("attempt", attempt).Msg("link stalled")
		link.Conn.Close()
		if m.cfg.Player != nil {
			m.cfg.Player.Stop(link.Remote)
		}
		if m.cfg.OnStalled != nil {
			m.cfg.OnStalled(link.Remote, attempt)
		}
	}
}

func (m *Mesh) Get(remote domain.UserID) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[remote]
	return link, ok
}

// CloseLink removes and closes the link for a remote. No-op when none
// exists.
func (m *Mesh) CloseLink(remote domain.UserID) {
	m.mu.Lock()
	link, ok := m.links[remote]
	if ok {
		delete(m.links, remote)
		metrics.ActivePeerLinks.Set(float64(len(m.links)))
	}
	delete(m.stalls, remote)
	m.mu.Unlock()
	if !ok {
		return
	}
	link.Conn.Close()
	if m.cfg.Player != nil {
		m.cfg.Player.Stop(remote)
	}
	log.Info().Str("module", "mesh").Str("peer", string(remote)).Msg("link closed")
}

// CloseAll tears down every tracked link; used when leaving the room.
func (m *Mesh) CloseAll() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[domain.UserID]*Link)
	m.stalls = make(map[domain.UserID]int)
	metrics.ActivePeerLinks.Set(0)
	m.mu.Unlock()

	for remote, link := range links {
		link.Conn.Close()
		if m.cfg.Player != nil {
			m.cfg.Player.Stop(remote)
		}
	}
	if len(links) > 0 {
		log.Info().Str("module", "mesh").Int("count", len(links)).Msg("all links closed")
	}
}

func (m *Mesh) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// SetPeerMic updates the remote participant's reported mute state.
func (m *Mesh) SetPeerMic(remote domain.UserID, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[remote]; ok {
		link.Peer.MicOn = on
	}
}

func (m *Mesh) Snapshot() []LinkInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LinkInfo, 0, len(m.links))
	for _, link := range m.links {
		out = append(out, LinkInfo{
			Remote:    link.Remote,
			Initiator: link.Initiator,
			State:     link.Conn.State().String(),
			MicOn:     link.Peer.MicOn,
		})
	}
	return out
}
