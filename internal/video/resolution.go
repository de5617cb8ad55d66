// Package video confirms that a camera session is actually delivering
// frames and reads its negotiated resolution.
package video

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

// DefaultPlaybackTimeout is how long a granted session may take to deliver
// its first frame before playback is considered stalled.
const DefaultPlaybackTimeout = 5 * time.Second

// Resolution is a negotiated frame size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String returns the resolution as "WIDTHxHEIGHT".
func (r Resolution) String() string {
	return strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height)
}

// IsZero reports whether no resolution has been read.
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// Playback is the sampler's view of a video session.
type Playback struct {
	// Playing is set once the first frame has been decoded.
	Playing bool `json:"playing"`
	// TimedOut is set when no frame arrived within the playback timeout.
	TimedOut bool `json:"timed_out,omitzero"`
	// Resolution is read once, when playback starts.
	Resolution Resolution `json:"resolution"`
}

// ResolutionSampler waits for the first frame of a video track and reads
// the negotiated resolution exactly once. A session whose first frame does
// not arrive within the timeout is reported as timed out; sampling keeps
// waiting so a late first frame still marks it playing.
type ResolutionSampler struct {
	track   capture.VideoTrack
	timeout time.Duration
	emit    func(Playback)

	mu       sync.Mutex
	playback Playback
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewResolutionSampler returns a sampler for track. emit runs on the
// sampler's goroutine after every change.
func NewResolutionSampler(track capture.VideoTrack, timeout time.Duration, emit func(Playback)) *ResolutionSampler {
	if timeout <= 0 {
		timeout = DefaultPlaybackTimeout
	}
	return &ResolutionSampler{
		track:   track,
		timeout: timeout,
		emit:    emit,
		done:    make(chan struct{}),
	}
}

// Start launches the sampling goroutine. ctx bounds the whole sampler.
func (s *ResolutionSampler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.run(ctx)
}

// Stop ends sampling. Safe to call more than once and before Start.
func (s *ResolutionSampler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the sampling goroutine has exited.
func (s *ResolutionSampler) Done() <-chan struct{} {
	return s.done
}

// Playback returns the latest playback state.
func (s *ResolutionSampler) Playback() Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

func (s *ResolutionSampler) run(ctx context.Context) {
	defer close(s.done)
	defer s.Stop()

	frameCh := make(chan frameResult, 1)
	go func() {
		frame, err := s.track.ReadFrame(ctx)
		frameCh <- frameResult{frame, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case r := <-frameCh:
			if r.err != nil {
				if !errors.Is(r.err, context.Canceled) && !s.track.Stopped() {
					slog.Warn("video frame read failed", "track", s.track.ID(), "error", r.err)
				}
				return
			}
			res := s.readResolution(r.frame)
			slog.Info("video playback started", "track", s.track.ID(), "resolution", res.String())
			s.update(func(p *Playback) {
				p.Playing = true
				p.TimedOut = false
				p.Resolution = res
			})
			return
		case <-timer.C:
			slog.Warn("video playback did not start", "track", s.track.ID(), "timeout", s.timeout)
			s.update(func(p *Playback) { p.TimedOut = true })
		case <-ctx.Done():
			return
		}
	}
}

// readResolution prefers the negotiated track settings and falls back to
// the decoded frame's bounds.
func (s *ResolutionSampler) readResolution(frame capture.Frame) Resolution {
	settings := s.track.Settings()
	if settings.Width > 0 && settings.Height > 0 {
		return Resolution{Width: settings.Width, Height: settings.Height}
	}
	return Resolution{Width: frame.Width, Height: frame.Height}
}

func (s *ResolutionSampler) update(fn func(*Playback)) {
	s.mu.Lock()
	fn(&s.playback)
	p := s.playback
	s.mu.Unlock()
	if s.emit != nil {
		s.emit(p)
	}
}

type frameResult struct {
	frame capture.Frame
	err   error
}
