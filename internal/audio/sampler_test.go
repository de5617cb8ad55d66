package audio

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

// fakeTrack is an audio track backed by an arbitrary reader.
type fakeTrack struct {
	*capture.BaseTrack
	r io.Reader
}

func (t *fakeTrack) Read(p []byte) (int, error) { return t.r.Read(p) }

// newFakeTrack returns a mono 8 kHz track, so one 50ms chunk is 800 bytes.
func newFakeTrack(r io.Reader, release func() error) *fakeTrack {
	settings := capture.Settings{SampleRate: 8000, Channels: 1}
	return &fakeTrack{BaseTrack: capture.NewBaseTrack(capture.KindAudio, settings, release), r: r}
}

type sampleRecorder struct {
	mu      sync.Mutex
	samples []LevelSample
}

func (r *sampleRecorder) emit(s LevelSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *sampleRecorder) all() []LevelSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LevelSample(nil), r.samples...)
}

func constantChunk(value int16, samples int) []byte {
	s := make([]int16, samples)
	for i := range s {
		s[i] = value
	}
	return pcm(s...)
}

func waitDone(t *testing.T, s *LevelSampler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop")
	}
}

func TestLevelSampler_EmitsPerChunkThenZeroOnEnd(t *testing.T) {
	stream := bytes.Repeat(constantChunk(16384, 400), 3)
	track := newFakeTrack(bytes.NewReader(stream), nil)
	rec := &sampleRecorder{}

	s := NewLevelSampler(track, 50*time.Millisecond, rec.emit)
	s.Start()
	waitDone(t, s)

	samples := rec.all()
	require.Len(t, samples, 4)
	for _, sample := range samples[:3] {
		assert.InDelta(t, 0.5, sample.Level, 0.0001)
		assert.InDelta(t, 0.5, sample.Peak, 0.0001)
		assert.False(t, sample.At.IsZero())
	}
	assert.Zero(t, samples[3].Level, "stream end yields a neutral sample")
}

func TestLevelSampler_MutedTrackReadsAsSilence(t *testing.T) {
	stream := bytes.Repeat(constantChunk(20000, 400), 2)
	track := newFakeTrack(bytes.NewReader(stream), nil)
	track.SetEnabled(false)
	rec := &sampleRecorder{}

	s := NewLevelSampler(track, 50*time.Millisecond, rec.emit)
	s.Start()
	waitDone(t, s)

	for _, sample := range rec.all() {
		assert.Zero(t, sample.Level)
	}
}

func TestLevelSampler_StopUnblocksWhenTrackStops(t *testing.T) {
	pr, pw := io.Pipe()
	track := newFakeTrack(pr, func() error {
		return pw.CloseWithError(io.ErrClosedPipe)
	})
	rec := &sampleRecorder{}

	s := NewLevelSampler(track, 50*time.Millisecond, rec.emit)
	s.Start()

	_, err := pw.Write(constantChunk(1000, 400))
	require.NoError(t, err)

	s.Stop()
	s.Stop()
	require.NoError(t, track.Stop())
	waitDone(t, s)

	// Nothing is published after an explicit Stop.
	assert.LessOrEqual(t, len(rec.all()), 1)
}

func TestLevelSampler_TrackStoppedElsewhere(t *testing.T) {
	pr, pw := io.Pipe()
	track := newFakeTrack(pr, func() error {
		return pw.CloseWithError(io.ErrClosedPipe)
	})
	rec := &sampleRecorder{}

	s := NewLevelSampler(track, 50*time.Millisecond, rec.emit)
	s.Start()
	require.NoError(t, track.Stop())
	waitDone(t, s)

	samples := rec.all()
	if len(samples) > 0 {
		assert.Zero(t, samples[len(samples)-1].Level)
	}
}

func TestLevelSampler_ChunkSizeDefaults(t *testing.T) {
	track := newFakeTrack(bytes.NewReader(nil), nil)
	track.UpdateSettings(func(s *capture.Settings) {
		s.SampleRate = 0
		s.Channels = 0
	})
	s := NewLevelSampler(track, 0, func(LevelSample) {})
	// 48 kHz stereo, 50ms.
	assert.Equal(t, 2400*2*2, s.chunkSize())
}
