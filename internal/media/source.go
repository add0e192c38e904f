package media

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const frameDuration = 20 * time.Millisecond

// opusSilence is a minimal CELT silence frame; enough to keep the RTP
// stream alive without a real capture device.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SyntheticSource is a CaptureSource without hardware behind it: one
// opus track fed silence at frame rate. Real deployments inject their
// own source; tests and the demo daemon use this one.
type SyntheticSource struct {
	TrackID  string
	StreamID string
}

func (s *SyntheticSource) Open(ctx context.Context, _ Constraints) ([]*Track, error) {
	trackID, streamID := s.TrackID, s.StreamID
	if trackID == "" {
		trackID = "audio"
	}
	if streamID == "" {
		streamID = "voicemesh"
	}
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, trackID, streamID)
	if err != nil {
		return nil, err
	}
	track := NewTrack(local)

	go func() {
		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := track.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: frameDuration})
				if err != nil {
					log.Error().Err(err).Str("module", "media").Msg("synthetic source write")
					return
				}
			}
		}
	}()

	return []*Track{track}, nil
}
