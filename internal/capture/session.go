// Package capture mediates hardware acquisition for one device type.
// It classifies acquisition failures into a bounded set of kinds and
// guarantees that at most one capture session is live per controller.
package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the device type a session captures from.
type Kind string

const (
	// KindAudio is an audio input device (microphone).
	KindAudio Kind = "audio"
	// KindVideo is a video input device (camera).
	KindVideo Kind = "video"
)

// Settings holds the negotiated parameters of a track.
type Settings struct {
	DeviceID   string `json:"device_id,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Track is one media channel within a capture session.
type Track interface {
	ID() string
	Kind() Kind
	// Enabled reports whether the track is delivering media. A disabled
	// track is muted but still holds the hardware.
	Enabled() bool
	SetEnabled(enabled bool)
	Settings() Settings
	// Stop releases the hardware behind the track. It is idempotent.
	Stop() error
	Stopped() bool
}

// AudioTrack is a track that delivers interleaved S16LE PCM.
type AudioTrack interface {
	Track
	io.Reader
}

// Frame describes one decoded video frame.
type Frame struct {
	Width     int
	Height    int
	Timestamp time.Time
}

// VideoTrack is a track that delivers decoded frames.
type VideoTrack interface {
	Track
	// ReadFrame blocks until the next frame is decoded or ctx is done.
	ReadFrame(ctx context.Context) (Frame, error)
}

// Constraints describe what to request from the host.
type Constraints struct {
	Kind       Kind
	DeviceID   string
	Width      int
	Height     int
	SampleRate int
	Channels   int
}

// Device is an enumerated input device.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Backend is the host capability to acquire capture sessions.
type Backend interface {
	// Acquire requests a live session matching c. It may block while the
	// host asks for permission.
	Acquire(ctx context.Context, c Constraints) (*Session, error)
	// Devices enumerates the input devices of the given kind.
	Devices(kind Kind) ([]Device, error)
}

// Session is one live handle to a hardware input device.
type Session struct {
	ID        string
	Kind      Kind
	Tracks    []Track
	StartedAt time.Time
}

// NewSession returns a session owning the given tracks.
func NewSession(kind Kind, tracks ...Track) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Tracks:    tracks,
		StartedAt: time.Now(),
	}
}

// IsLive reports whether any track of the session still holds hardware.
func (s *Session) IsLive() bool {
	if s == nil {
		return false
	}
	for _, t := range s.Tracks {
		if !t.Stopped() {
			return true
		}
	}
	return false
}

// Stop stops every track of the session.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, t := range s.Tracks {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Track returns the first track of the session, or nil.
func (s *Session) Track() Track {
	if s == nil || len(s.Tracks) == 0 {
		return nil
	}
	return s.Tracks[0]
}

// AudioTrack returns the first audio track of the session.
func (s *Session) AudioTrack() (AudioTrack, bool) {
	if s == nil {
		return nil, false
	}
	for _, t := range s.Tracks {
		if at, ok := t.(AudioTrack); ok {
			return at, true
		}
	}
	return nil, false
}

// VideoTrack returns the first video track of the session.
func (s *Session) VideoTrack() (VideoTrack, bool) {
	if s == nil {
		return nil, false
	}
	for _, t := range s.Tracks {
		if vt, ok := t.(VideoTrack); ok {
			return vt, true
		}
	}
	return nil, false
}

// BaseTrack implements the bookkeeping shared by all backend tracks.
// It is safe for concurrent use.
type BaseTrack struct {
	id   string
	kind Kind

	mu       sync.Mutex
	enabled  bool
	stopped  bool
	settings Settings
	release  func() error
}

// NewBaseTrack returns an enabled track. release is called once, on the
// first Stop.
func NewBaseTrack(kind Kind, settings Settings, release func() error) *BaseTrack {
	return &BaseTrack{
		id:       uuid.NewString(),
		kind:     kind,
		enabled:  true,
		settings: settings,
		release:  release,
	}
}

// ID returns the track identifier.
func (t *BaseTrack) ID() string { return t.id }

// Kind returns the track's device type.
func (t *BaseTrack) Kind() Kind { return t.kind }

// Enabled reports whether the track is enabled.
func (t *BaseTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled enables or mutes the track.
func (t *BaseTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Settings returns the negotiated track settings.
func (t *BaseTrack) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// UpdateSettings replaces the negotiated settings.
func (t *BaseTrack) UpdateSettings(fn func(*Settings)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.settings)
}

// Stop releases the track. Only the first call reaches the backend.
func (t *BaseTrack) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	release := t.release
	t.mu.Unlock()

	if release == nil {
		return nil
	}
	return release()
}

// Stopped reports whether Stop has been called.
func (t *BaseTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
