// Package checker runs one microphone or webcam check: it owns the capture
// controller, attaches the matching sampler to each new session and
// republishes the diagnosis whenever any input changes.
package checker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/audio"
	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
)

// ErrNoSession is returned by operations that need a live session.
var ErrNoSession = errors.New("no live capture session")

// MicOptions configure a microphone check.
type MicOptions struct {
	DeviceID       string
	Silence        audio.SilenceConfig
	SampleInterval time.Duration
}

// MeterReading is the live state behind the level meter.
type MeterReading struct {
	Live      bool    `json:"live"`
	Level     float64 `json:"level"`
	Peak      float64 `json:"peak"`
	HeldPeak  float64 `json:"held_peak"`
	DB        float64 `json:"db"`
	Muted     bool    `json:"muted,omitzero"`
	NoSignal  bool    `json:"no_signal,omitzero"`
	SilenceMs int64   `json:"silence_ms,omitzero"`
}

// Mic is one microphone check. It is safe for concurrent use.
type Mic struct {
	ctrl  *capture.Controller
	diag  *publisher[diagnosis.Diagnosis]
	pubMu sync.Mutex // serializes diagnose+publish

	mu         sync.Mutex
	opts       MicOptions
	closed     bool
	session    *capture.Session // session the sampler is attached to
	sampler    *audio.LevelSampler
	silence    *audio.SilenceWindow
	peaks      *audio.PeakHolder
	last       audio.LevelSample
	held       float64
	silenceDur time.Duration
	heard      bool // a sample above the silence threshold arrived
}

// NewMic returns a microphone check that acquires from backend. Nothing is
// acquired until Start.
func NewMic(backend capture.Backend, opts MicOptions) *Mic {
	m := &Mic{
		diag:    newPublisher[diagnosis.Diagnosis](),
		opts:    opts,
		silence: audio.NewSilenceWindow(opts.Silence),
		peaks:   audio.NewPeakHolder(),
	}
	m.ctrl = capture.NewController(capture.KindAudio, backend, capture.Constraints{DeviceID: opts.DeviceID})
	m.ctrl.OnChange(m.sync)
	m.publish()
	return m
}

// Start acquires the microphone, releasing any previous session first.
// Failures are classified and reflected in the diagnosis.
func (m *Mic) Start(ctx context.Context) error {
	return m.ctrl.Start(ctx)
}

// Retry re-runs acquisition on behalf of the user.
func (m *Mic) Retry(ctx context.Context) error {
	slog.Info("microphone retry requested")
	return m.ctrl.Restart(ctx)
}

// Stop releases the microphone.
func (m *Mic) Stop() {
	m.ctrl.Stop()
}

// Close releases the microphone for good, including a session still being
// acquired.
func (m *Mic) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.detachLocked()
	m.mu.Unlock()

	m.ctrl.Close()
}

// SetOptions replaces the options used by the next Start.
func (m *Mic) SetOptions(opts MicOptions) {
	m.mu.Lock()
	m.opts = opts
	m.mu.Unlock()
	m.ctrl.SetConstraints(capture.Constraints{DeviceID: opts.DeviceID})
}

// SetMuted mutes or unmutes the live track.
func (m *Mic) SetMuted(muted bool) error {
	track := m.ctrl.State().Session.Track()
	if track == nil {
		return ErrNoSession
	}
	track.SetEnabled(!muted)
	if !muted {
		// Silence collected while muted says nothing about the input.
		m.mu.Lock()
		m.silence.Reset()
		m.heard = false
		m.mu.Unlock()
	}
	slog.Info("microphone mute changed", "muted", muted)
	m.publish()
	return nil
}

// Diagnosis returns the latest published diagnosis.
func (m *Mic) Diagnosis() diagnosis.Diagnosis {
	return m.diag.Latest()
}

// Subscribe returns a channel of diagnosis changes, starting with the
// current one.
func (m *Mic) Subscribe() (<-chan diagnosis.Diagnosis, func()) {
	return m.diag.Subscribe()
}

// State returns the controller state.
func (m *Mic) State() capture.State {
	return m.ctrl.State()
}

// Level returns the current meter reading.
func (m *Mic) Level() MeterReading {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.ctrl.State()
	r := MeterReading{Live: state.Session != nil && state.Session == m.session}
	if !r.Live {
		return r
	}
	r.Level = m.last.Level
	r.Peak = m.last.Peak
	r.HeldPeak = m.held
	r.DB = audio.ToDB(m.last.Level)
	r.NoSignal = m.silence.NoSignal()
	r.SilenceMs = m.silenceDur.Milliseconds()
	if t := state.Session.Track(); t != nil {
		r.Muted = !t.Enabled()
	}
	return r
}

// sync follows the controller: it moves the sampler to the current session
// and republishes.
func (m *Mic) sync() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	sess := m.ctrl.State().Session
	if sess != m.session {
		m.detachLocked()
		if sess != nil {
			m.attachLocked(sess)
		}
	}
	m.mu.Unlock()
	m.publish()
}

func (m *Mic) attachLocked(sess *capture.Session) {
	m.session = sess
	m.silence = audio.NewSilenceWindow(m.opts.Silence)
	m.peaks.Reset()
	m.last = audio.LevelSample{}
	m.held = 0
	m.silenceDur = 0
	m.heard = false

	track, ok := sess.AudioTrack()
	if !ok {
		slog.Warn("capture session has no audio track", "session", sess.ID)
		return
	}

	var s *audio.LevelSampler
	s = audio.NewLevelSampler(track, m.opts.SampleInterval, func(sample audio.LevelSample) {
		m.onSample(s, sample)
	})
	m.sampler = s
	s.Start()
}

func (m *Mic) detachLocked() {
	if m.sampler != nil {
		m.sampler.Stop()
		m.sampler = nil
	}
	m.session = nil
}

func (m *Mic) onSample(s *audio.LevelSampler, sample audio.LevelSample) {
	m.mu.Lock()
	if m.sampler != s {
		m.mu.Unlock()
		return
	}
	m.last = sample
	st := m.silence.Update(sample.Level, sample.At)
	m.silenceDur = st.Duration
	m.held = m.peaks.Update(sample.Peak, sample.At)
	if sample.Level > m.silence.Config().Threshold {
		m.heard = true
	}
	window := m.silence.Config().Window
	m.mu.Unlock()

	if st.JustEntered {
		slog.Info("no microphone signal", "window", window)
	}
	m.publish()
}

// diagnose gathers the classifier inputs.
func (m *Mic) diagnose() diagnosis.Diagnosis {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.ctrl.State()
	in := diagnosis.MicInput{
		Err:        state.Err,
		HasSession: state.Session != nil,
	}
	if t := state.Session.Track(); t != nil {
		in.TrackEnabled = t.Enabled()
	}
	if state.Session != nil && state.Session == m.session {
		in.Level = m.last.Level
		in.NoSignal = m.silence.NoSignal()
		in.Measuring = !m.heard
	}
	return diagnosis.DiagnoseMic(in)
}

func (m *Mic) publish() {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	d := m.diagnose()
	if m.diag.Publish(d) {
		slog.Debug("microphone diagnosis changed", "status", d.Status, "level", d.Level)
		recordDiagnosis(d)
	}
}
