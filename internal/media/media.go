// Package media owns the local audio capture: acquire/release of the
// capture source and the mute state shared by every peer link.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMediaAccess is fatal to joining a room and surfaces to the caller.
	ErrMediaAccess = errors.New("could not access microphone, check permissions")
	// ErrNoActiveStream means a mute toggle arrived before acquisition.
	ErrNoActiveStream = errors.New("no active media stream")
)

// Constraints mirror the capture options requested from the platform.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

func DefaultConstraints() Constraints {
	return Constraints{EchoCancellation: true, NoiseSuppression: true, AutoGainControl: true}
}

// Track pairs a local sample track with its enabled flag. Samples
// written while disabled are dropped before packetization, which is
// what mute means for every attached peer at once.
type Track struct {
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

func NewTrack(local *webrtc.TrackLocalStaticSample) *Track {
	return &Track{local: local}
}

func (t *Track) Enabled() bool { return t.enabled.Load() }

func (t *Track) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *Track) Local() webrtc.TrackLocal { return t.local }

func (t *Track) WriteSample(s pionmedia.Sample) error {
	if !t.enabled.Load() {
		return nil
	}
	return t.local.WriteSample(s)
}

// CaptureSource abstracts the platform microphone. Implementations feed
// the returned tracks until ctx is canceled.
type CaptureSource interface {
	Open(ctx context.Context, c Constraints) ([]*Track, error)
}

// Manager holds the acquired tracks and the mute state. The default
// post-acquire state is muted.
type Manager struct {
	source CaptureSource

	mu     sync.Mutex
	tracks []*Track
	micOn  bool
	cancel context.CancelFunc
}

func NewManager(source CaptureSource) *Manager {
	return &Manager{source: source}
}

// Acquire opens the capture source and mutes every track. Re-acquiring
// while tracks exist is a no-op.
func (m *Manager) Acquire(ctx context.Context, c Constraints) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tracks) > 0 {
		return nil
	}

	srcCtx, cancel := context.WithCancel(ctx)
	tracks, err := m.source.Open(srcCtx, c)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrMediaAccess, err)
	}
	for _, t := range tracks {
		t.SetEnabled(false)
	}
	m.tracks = tracks
	m.micOn = false
	m.cancel = cancel
	log.Info().Str("module", "media").Int("tracks", len(tracks)).Msg("capture acquired, muted")
	return nil
}

// Toggle flips the mute state and mirrors it onto every track.
func (m *Manager) Toggle() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tracks) == 0 {
		return false, ErrNoActiveStream
	}
	m.micOn = !m.micOn
	for _, t := range m.tracks {
		t.SetEnabled(m.micOn)
	}
	log.Info().Str("module", "media").Bool("mic_on", m.micOn).Msg("mic toggled")
	return m.micOn, nil
}

// Release stops the source and discards all tracks. Idempotent.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if len(m.tracks) > 0 {
		log.Info().Str("module", "media").Int("tracks", len(m.tracks)).Msg("capture released")
	}
	m.tracks = nil
	m.micOn = false
}

func (m *Manager) Acquired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks) > 0
}

func (m *Manager) MicOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.micOn
}

// Tracks returns the current track set for attaching to peer links.
func (m *Manager) Tracks() []*Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Track, len(m.tracks))
	copy(out, m.tracks)
	return out
}
