package server

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

// silentTrack is a paced mono audio track of zero samples.
type silentTrack struct {
	*capture.BaseTrack
	done chan struct{}
}

func newSilentTrack() *silentTrack {
	t := &silentTrack{done: make(chan struct{})}
	var once sync.Once
	t.BaseTrack = capture.NewBaseTrack(capture.KindAudio, capture.Settings{SampleRate: 8000, Channels: 1}, func() error {
		once.Do(func() { close(t.done) })
		return nil
	})
	return t
}

func (t *silentTrack) Read(p []byte) (int, error) {
	select {
	case <-t.done:
		return 0, io.EOF
	case <-time.After(2 * time.Millisecond):
	}
	clear(p)
	return len(p), nil
}

// frameTrack plays immediately at a fixed size.
type frameTrack struct {
	*capture.BaseTrack
}

func newFrameTrack() *frameTrack {
	return &frameTrack{capture.NewBaseTrack(capture.KindVideo, capture.Settings{Width: 1920, Height: 1080}, nil)}
}

func (t *frameTrack) ReadFrame(context.Context) (capture.Frame, error) {
	return capture.Frame{Width: 1920, Height: 1080, Timestamp: time.Now()}, nil
}

// fakeBackend fails with err when set and otherwise hands out tracks for
// the requested kind.
type fakeBackend struct {
	mu    sync.Mutex
	err   error
	calls int
	last  capture.Constraints
}

func (b *fakeBackend) Acquire(_ context.Context, c capture.Constraints) (*capture.Session, error) {
	b.mu.Lock()
	b.calls++
	b.last = c
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c.Kind == capture.KindVideo {
		return capture.NewSession(c.Kind, newFrameTrack()), nil
	}
	return capture.NewSession(c.Kind, newSilentTrack()), nil
}

func (b *fakeBackend) Devices(kind capture.Kind) ([]capture.Device, error) {
	return []capture.Device{{ID: "dev-1", Name: "Test " + string(kind), Kind: kind}}, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBackend) lastConstraints() capture.Constraints {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
