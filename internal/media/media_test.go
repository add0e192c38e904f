package media

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"
)

type fakeSource struct {
	tracks int
	err    error
	opens  int
}

func (f *fakeSource) Open(_ context.Context, _ Constraints) ([]*Track, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*Track, 0, f.tracks)
	for i := 0; i < f.tracks; i++ {
		local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		}, fmt.Sprintf("audio%d", i), "test")
		if err != nil {
			return nil, err
		}
		out = append(out, NewTrack(local))
	}
	return out, nil
}

func TestAcquire_StartsMuted(t *testing.T) {
	m := NewManager(&fakeSource{tracks: 1})
	if err := m.Acquire(context.Background(), DefaultConstraints()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	tracks := m.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if tracks[0].Enabled() {
		t.Fatalf("track must start disabled")
	}
	if m.MicOn() {
		t.Fatalf("mic must start off")
	}
}

func TestAcquire_DeniedWrapsMediaAccess(t *testing.T) {
	m := NewManager(&fakeSource{err: errors.New("permission denied")})
	err := m.Acquire(context.Background(), DefaultConstraints())
	if !errors.Is(err, ErrMediaAccess) {
		t.Fatalf("expected ErrMediaAccess, got %v", err)
	}
	if m.Acquired() {
		t.Fatalf("manager must not report acquired after denial")
	}
}

func TestAcquire_Twice_IsNoOp(t *testing.T) {
	src := &fakeSource{tracks: 1}
	m := NewManager(src)
	if err := m.Acquire(context.Background(), DefaultConstraints()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.Acquire(context.Background(), DefaultConstraints()); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if src.opens != 1 {
		t.Fatalf("expected a single source open, got %d", src.opens)
	}
}

func TestToggle_MirrorsAcrossAllTracks(t *testing.T) {
	m := NewManager(&fakeSource{tracks: 3})
	if err := m.Acquire(context.Background(), DefaultConstraints()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	on, err := m.Toggle()
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !on {
		t.Fatalf("first toggle must unmute")
	}
	for i, tr := range m.Tracks() {
		if !tr.Enabled() {
			t.Fatalf("track %d not enabled after unmute", i)
		}
	}

	on, err = m.Toggle()
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if on {
		t.Fatalf("second toggle must mute again")
	}
	for i, tr := range m.Tracks() {
		if tr.Enabled() {
			t.Fatalf("track %d still enabled after mute", i)
		}
	}
}

func TestToggle_BeforeAcquire(t *testing.T) {
	m := NewManager(&fakeSource{tracks: 1})
	if _, err := m.Toggle(); !errors.Is(err, ErrNoActiveStream) {
		t.Fatalf("expected ErrNoActiveStream, got %v", err)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	m := NewManager(&fakeSource{tracks: 1})
	if err := m.Acquire(context.Background(), DefaultConstraints()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.Release()
	m.Release()
	if m.Acquired() {
		t.Fatalf("tracks survive release")
	}
	if _, err := m.Toggle(); !errors.Is(err, ErrNoActiveStream) {
		t.Fatalf("toggle after release must fail, got %v", err)
	}
}
