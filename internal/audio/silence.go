package audio

import (
	"sync"
	"time"
)

const (
	// DefaultSilenceThreshold is the normalized level at or below which input
	// counts as near-silent.
	DefaultSilenceThreshold = 0.001
	// DefaultEvaluationWindow is how long input must stay near-silent before
	// it is reported as no signal.
	DefaultEvaluationWindow = 3 * time.Second
)

// SilenceConfig holds the thresholds for no-signal detection.
type SilenceConfig struct {
	Threshold float64       // normalized level at or below which input is silent
	Window    time.Duration // how long silence must last
}

// SilenceState is the result of a silence window update.
type SilenceState struct {
	// NoSignal is set once every sample for a full window was silent.
	NoSignal bool
	// Duration is how long the current silent run has lasted.
	Duration time.Duration
	// JustEntered is true on the update that first reported NoSignal.
	JustEntered bool
	// JustRecovered is true on the update that ended a NoSignal run.
	JustRecovered bool
}

// SilenceWindow tracks whether input stayed near-silent for an entire
// evaluation window. Any louder sample restarts the window immediately.
// It is safe for concurrent use.
type SilenceWindow struct {
	mu           sync.Mutex
	cfg          SilenceConfig
	silenceStart time.Time // when the current silent run started
	noSignal     bool
}

// NewSilenceWindow returns a window using cfg. Zero fields take the
// package defaults.
func NewSilenceWindow(cfg SilenceConfig) *SilenceWindow {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultSilenceThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultEvaluationWindow
	}
	return &SilenceWindow{cfg: cfg}
}

// Update feeds one level sample taken at now and returns the window state.
func (w *SilenceWindow) Update(level float64, now time.Time) SilenceState {
	w.mu.Lock()
	defer w.mu.Unlock()

	if level > w.cfg.Threshold {
		recovered := w.noSignal
		w.silenceStart = time.Time{}
		w.noSignal = false
		return SilenceState{JustRecovered: recovered}
	}

	if w.silenceStart.IsZero() {
		w.silenceStart = now
	}
	state := SilenceState{Duration: now.Sub(w.silenceStart)}

	if state.Duration >= w.cfg.Window {
		state.NoSignal = true
		state.JustEntered = !w.noSignal
		w.noSignal = true
	}
	return state
}

// NoSignal reports the last computed state without feeding a sample.
func (w *SilenceWindow) NoSignal() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.noSignal
}

// Config returns the thresholds in use.
func (w *SilenceWindow) Config() SilenceConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Reset clears the window, e.g. when a new session starts.
func (w *SilenceWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.silenceStart = time.Time{}
	w.noSignal = false
}
