package checker

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

// toneTrack is a mono 8 kHz audio track producing a constant sample value,
// paced roughly in real time, until it is stopped.
type toneTrack struct {
	*capture.BaseTrack
	mu    sync.Mutex
	value int16
	done  chan struct{}
}

func newToneTrack(value int16) *toneTrack {
	t := &toneTrack{value: value, done: make(chan struct{})}
	var once sync.Once
	t.BaseTrack = capture.NewBaseTrack(capture.KindAudio, capture.Settings{SampleRate: 8000, Channels: 1}, func() error {
		once.Do(func() { close(t.done) })
		return nil
	})
	return t
}

func (t *toneTrack) setValue(v int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = v
}

func (t *toneTrack) Read(p []byte) (int, error) {
	select {
	case <-t.done:
		return 0, io.EOF
	case <-time.After(2 * time.Millisecond):
	}
	t.mu.Lock()
	v := t.value
	t.mu.Unlock()
	n := len(p) &^ 1
	for i := 0; i < n; i += 2 {
		binary.LittleEndian.PutUint16(p[i:], uint16(v))
	}
	return n, nil
}

// cameraTrack delivers a first frame only when playing is set.
type cameraTrack struct {
	*capture.BaseTrack
	playing bool
}

func newCameraTrack(width, height int, playing bool) *cameraTrack {
	return &cameraTrack{
		BaseTrack: capture.NewBaseTrack(capture.KindVideo, capture.Settings{Width: width, Height: height}, nil),
		playing:   playing,
	}
}

func (t *cameraTrack) ReadFrame(ctx context.Context) (capture.Frame, error) {
	if t.playing {
		s := t.Settings()
		return capture.Frame{Width: s.Width, Height: s.Height, Timestamp: time.Now()}, nil
	}
	<-ctx.Done()
	return capture.Frame{}, ctx.Err()
}

// stubBackend hands out sessions built by newTrack. Each call consumes the
// next entry of errs.
type stubBackend struct {
	mu       sync.Mutex
	errs     []error
	calls    int
	gate     chan struct{}
	entered  chan struct{}
	newTrack func() capture.Track
	tracks   []capture.Track
	last     capture.Constraints
}

func (b *stubBackend) Acquire(ctx context.Context, c capture.Constraints) (*capture.Session, error) {
	b.mu.Lock()
	idx := b.calls
	b.calls++
	b.last = c
	var err error
	if idx < len(b.errs) {
		err = b.errs[idx]
	}
	gate, entered := b.gate, b.entered
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	track := b.newTrack()
	b.mu.Lock()
	b.tracks = append(b.tracks, track)
	b.mu.Unlock()
	return capture.NewSession(c.Kind, track), nil
}

func (b *stubBackend) Devices(kind capture.Kind) ([]capture.Device, error) {
	return []capture.Device{{ID: "default", Name: "Default", Kind: kind}}, nil
}

func (b *stubBackend) lastConstraints() capture.Constraints {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *stubBackend) liveTracks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.tracks {
		if !t.Stopped() {
			n++
		}
	}
	return n
}
