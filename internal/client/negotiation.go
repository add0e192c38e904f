package client

import (
	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/domain"
	"github.com/arezvov/voicemesh/internal/events"
	"github.com/arezvov/voicemesh/internal/metrics"
	"github.com/arezvov/voicemesh/internal/signaling"
)

// shouldInitiate is the glare tie-break: the lexicographically smaller
// id always offers, the larger side waits for the inbound offer. Both
// sides compute the same answer, so exactly one offers.
func (c *Client) shouldInitiate(remote domain.UserID) bool {
	return c.self() < remote
}

func (c *Client) handleUserJoined(remote domain.UserID) {
	if remote == "" || remote == c.self() {
		return
	}
	log.Info().Str("module", "client").Str("peer", string(remote)).Msg("peer joined")
	c.bus.Publish(events.Event{Kind: events.PeerJoined, Peer: remote})

	if !c.shouldInitiate(remote) {
		return
	}
	if !c.media.Acquired() {
		// Outbound links need local tracks; without media we wait for
		// the remote side's offer instead.
		log.Warn().Str("module", "client").Str("peer", string(remote)).Msg("no local media, not initiating")
		return
	}
	c.initiate(remote)
}

func (c *Client) initiate(remote domain.UserID) {
	link, err := c.mesh.CreateLink(remote, true)
	if err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(remote)).Msg("create link")
		return
	}
	offer, err := link.Conn.CreateOffer()
	if err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(remote)).Msg("create offer")
		return
	}
	c.sendSignal(signaling.Offer(remote, offer))
}

func (c *Client) handleUserLeft(remote domain.UserID) {
	if remote == "" {
		return
	}
	log.Info().Str("module", "client").Str("peer", string(remote)).Msg("peer left")
	c.mesh.CloseLink(remote)
	c.bus.Publish(events.Event{Kind: events.PeerLeft, Peer: remote})
}

func (c *Client) handleUserMicToggle(env signaling.Envelope) {
	if env.IsMicOn == nil {
		return
	}
	c.mesh.SetPeerMic(env.UserID, *env.IsMicOn)
	c.bus.Publish(events.Event{Kind: events.PeerMicToggled, Peer: env.UserID, MicOn: *env.IsMicOn})
}

func (c *Client) handleOffer(env signaling.Envelope) {
	from := env.FromUserID
	if from == "" || env.Offer == nil {
		return
	}

	if link, ok := c.mesh.Get(from); ok && link.Initiator && c.shouldInitiate(from) {
		// Glare: we are the rightful offerer for this pair, so the
		// remote's competing offer loses the tie-break.
		log.Warn().Str("module", "client").Str("peer", string(from)).Msg("dropping offer from tie-break loser")
		return
	}

	link, err := c.mesh.CreateLink(from, false)
	if err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(from)).Msg("create link for offer")
		return
	}

	offer, err := env.Offer.ToPion()
	if err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(from)).Msg("bad offer sdp")
		return
	}
	answer, err := link.Conn.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(from)).Msg("apply offer")
		return
	}
	c.sendSignal(signaling.Answer(from, answer))
}

func (c *Client) handleAnswer(env signaling.Envelope) {
	from := env.FromUserID
	if from == "" || env.Answer == nil {
		return
	}
	link, ok := c.mesh.Get(from)
	if !ok {
		// Legitimate race: the link was torn down mid-negotiation.
		log.Error().Str("module", "client").Str("peer", string(from)).Msg("answer for unknown link, dropped")
		return
	}
	answer, err := env.Answer.ToPion()
	if err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(from)).Msg("bad answer sdp")
		return
	}
	if err := link.Conn.ApplyAnswer(answer); err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(from)).Msg("apply answer")
	}
}

func (c *Client) handleCandidate(env signaling.Envelope) {
	from := env.FromUserID
	if from == "" || env.Candidate == nil {
		return
	}
	link, ok := c.mesh.Get(from)
	if !ok {
		log.Error().Str("module", "client").Str("peer", string(from)).Msg("candidate for unknown link, dropped")
		return
	}
	if err := link.Conn.AddICECandidate(env.Candidate.ToPion()); err != nil {
		metrics.NegotiationFailures.Inc()
		log.Error().Err(err).Str("module", "client").Str("peer", string(from)).Msg("add ice candidate")
	}
}

// onLinkStalled supervises failed links: the first terminal failure per
// peer re-triggers negotiation once; the second gives up and reports.
func (c *Client) onLinkStalled(remote domain.UserID, attempt int) {
	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()
	if !joined {
		return
	}

	if attempt > 1 || !c.shouldInitiate(remote) || !c.media.Acquired() {
		// The answering side cannot renegotiate; it waits for a fresh
		// offer or reports the failure.
		if attempt > 1 {
			log.Error().Str("module", "client").Str("peer", string(remote)).Int("attempt", attempt).Msg("link failed, giving up")
			c.bus.Publish(events.Event{Kind: events.PeerFailed, Peer: remote})
		}
		return
	}
	log.Warn().Str("module", "client").Str("peer", string(remote)).Msg("link stalled, renegotiating once")
	c.initiate(remote)
}
