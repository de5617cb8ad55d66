package audio

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

// DefaultSampleInterval yields 20 level samples per second.
const DefaultSampleInterval = 50 * time.Millisecond

// LevelSample is one normalized level reading of the live input.
type LevelSample struct {
	Level float64   `json:"level"` // RMS amplitude in [0,1]
	Peak  float64   `json:"peak"`  // peak amplitude in [0,1]
	Clips int       `json:"clips,omitzero"`
	At    time.Time `json:"at"`
}

// LevelSampler reads PCM from an audio track and emits a LevelSample for
// every interval worth of frames. It stops when the track ends or Stop is
// called, and never returns an error: a failed read yields one zero sample.
type LevelSampler struct {
	track    capture.AudioTrack
	interval time.Duration
	emit     func(LevelSample)

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewLevelSampler returns a sampler for track. emit runs on the sampler's
// goroutine and must not block for long.
func NewLevelSampler(track capture.AudioTrack, interval time.Duration, emit func(LevelSample)) *LevelSampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &LevelSampler{
		track:    track,
		interval: interval,
		emit:     emit,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling goroutine.
func (s *LevelSampler) Start() {
	go s.run()
}

// Stop ends sampling. It does not wait for a blocked read; stopping the
// track unblocks it. Safe to call more than once.
func (s *LevelSampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done is closed when the sampling goroutine has exited.
func (s *LevelSampler) Done() <-chan struct{} {
	return s.done
}

func (s *LevelSampler) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// chunkSize returns the byte count of one interval of S16LE frames.
func (s *LevelSampler) chunkSize() int {
	settings := s.track.Settings()
	rate := settings.SampleRate
	if rate <= 0 {
		rate = types.SampleRate
	}
	channels := settings.Channels
	if channels <= 0 {
		channels = types.Channels
	}
	frames := max(int(int64(rate)*s.interval.Milliseconds()/1000), 1)
	return frames * channels * 2
}

func (s *LevelSampler) run() {
	defer close(s.done)

	buf := make([]byte, s.chunkSize())
	var data LevelData
	slog.Debug("level sampler started", "track", s.track.ID(), "chunk_bytes", len(buf))

	for {
		if s.stopped() || s.track.Stopped() {
			slog.Debug("level sampler stopped", "track", s.track.ID())
			return
		}

		_, err := io.ReadFull(s.track, buf)
		if err != nil {
			if s.stopped() {
				return
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !s.track.Stopped() {
				slog.Warn("audio read failed", "track", s.track.ID(), "error", err)
			}
			s.emit(LevelSample{At: time.Now()})
			return
		}

		// A muted track delivers silence, as the host would.
		if !s.track.Enabled() {
			s.emit(LevelSample{At: time.Now()})
			continue
		}

		data.Reset()
		ProcessSamples(buf, &data)
		lvl := CalculateLevel(&data)
		if s.stopped() {
			return
		}
		s.emit(LevelSample{Level: lvl.RMS, Peak: lvl.Peak, Clips: lvl.Clips, At: time.Now()})
	}
}
