// Package playback drains inbound remote audio. A real deployment
// plugs a device-backed Player; the default drain keeps the RTP flow
// alive and observable without audio hardware.
package playback

import (
	"context"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/domain"
)

// Player consumes one remote track per peer. Implementations must not
// propagate playback-start failures; a broken sink degrades one peer's
// audio, not the session.
type Player interface {
	Play(remote domain.UserID, track *webrtc.TrackRemote)
	Stop(remote domain.UserID)
}

// RTPDrain reads packets off every remote track until the track dies or
// the peer is stopped.
type RTPDrain struct {
	mu      sync.Mutex
	cancels map[domain.UserID]context.CancelFunc
}

func NewRTPDrain() *RTPDrain {
	return &RTPDrain{cancels: make(map[domain.UserID]context.CancelFunc)}
}

// rtpReader is the slice of *webrtc.TrackRemote the drain consumes.
type rtpReader interface {
	ID() string
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

func (d *RTPDrain) Play(remote domain.UserID, track *webrtc.TrackRemote) {
	d.start(remote, track)
}

func (d *RTPDrain) start(remote domain.UserID, track rtpReader) {
	logger := log.With().
		Str("module", "playback").
		Str("peer", string(remote)).
		Str("track_id", track.ID()).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if old, ok := d.cancels[remote]; ok {
		old()
	}
	d.cancels[remote] = cancel
	d.mu.Unlock()

	logger.Info().Msg("starting playback drain")
	go d.loop(ctx, track, &logger)
}

func (d *RTPDrain) loop(ctx context.Context, track rtpReader, logger *zerolog.Logger) {
	var count uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info().Uint64("packets", count).Msg("playback drain stopped")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Warn().Err(err).Uint64("packets", count).Msg("playback read ended")
			return
		}
		count++
		d.observe(pkt, count, logger)
	}
}

func (d *RTPDrain) observe(pkt *rtp.Packet, count uint64, logger *zerolog.Logger) {
	// One line per ~10s of 20ms frames keeps the drain visible without flooding.
	if count%500 == 0 {
		logger.Debug().
			Uint16("seq", pkt.SequenceNumber).
			Uint32("ts", pkt.Timestamp).
			Uint64("packets", count).
			Msg("audio flowing")
	}
}

func (d *RTPDrain) Stop(remote domain.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.cancels[remote]; ok {
		cancel()
		delete(d.cancels, remote)
	}
}

func (d *RTPDrain) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for remote, cancel := range d.cancels {
		cancel()
		delete(d.cancels, remote)
	}
}
