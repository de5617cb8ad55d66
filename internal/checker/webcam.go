package checker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
	"github.com/oszuidwest/zwfm-devicecheck/internal/video"
)

// WebcamOptions configure a webcam check.
type WebcamOptions struct {
	DeviceID        string
	Width           int
	Height          int
	PlaybackTimeout time.Duration
}

func (o WebcamOptions) constraints() capture.Constraints {
	return capture.Constraints{DeviceID: o.DeviceID, Width: o.Width, Height: o.Height}
}

// Webcam is one webcam check. It is safe for concurrent use.
type Webcam struct {
	ctrl  *capture.Controller
	diag  *publisher[diagnosis.Diagnosis]
	pubMu sync.Mutex

	mu       sync.Mutex
	opts     WebcamOptions
	closed   bool
	session  *capture.Session
	sampler  *video.ResolutionSampler
	playback video.Playback
}

// NewWebcam returns a webcam check that acquires from backend.
func NewWebcam(backend capture.Backend, opts WebcamOptions) *Webcam {
	w := &Webcam{
		diag: newPublisher[diagnosis.Diagnosis](),
		opts: opts,
	}
	w.ctrl = capture.NewController(capture.KindVideo, backend, opts.constraints())
	w.ctrl.OnChange(w.sync)
	w.publish()
	return w
}

// Start acquires the camera, releasing any previous session first.
func (w *Webcam) Start(ctx context.Context) error {
	return w.ctrl.Start(ctx)
}

// Retry re-runs acquisition on behalf of the user.
func (w *Webcam) Retry(ctx context.Context) error {
	slog.Info("webcam retry requested")
	return w.ctrl.Restart(ctx)
}

// Stop releases the camera.
func (w *Webcam) Stop() {
	w.ctrl.Stop()
}

// Close releases the camera for good, including a session still being
// acquired.
func (w *Webcam) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.detachLocked()
	w.mu.Unlock()

	w.ctrl.Close()
}

// SetOptions replaces the options used by the next Start.
func (w *Webcam) SetOptions(opts WebcamOptions) {
	w.mu.Lock()
	w.opts = opts
	w.mu.Unlock()
	w.ctrl.SetConstraints(opts.constraints())
}

// Diagnosis returns the latest published diagnosis.
func (w *Webcam) Diagnosis() diagnosis.Diagnosis {
	return w.diag.Latest()
}

// Subscribe returns a channel of diagnosis changes, starting with the
// current one.
func (w *Webcam) Subscribe() (<-chan diagnosis.Diagnosis, func()) {
	return w.diag.Subscribe()
}

// State returns the controller state.
func (w *Webcam) State() capture.State {
	return w.ctrl.State()
}

// Playback returns the playback state of the current session.
func (w *Webcam) Playback() video.Playback {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.playback
}

func (w *Webcam) sync() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	sess := w.ctrl.State().Session
	if sess != w.session {
		w.detachLocked()
		if sess != nil {
			w.attachLocked(sess)
		}
	}
	w.mu.Unlock()
	w.publish()
}

func (w *Webcam) attachLocked(sess *capture.Session) {
	w.session = sess
	w.playback = video.Playback{}

	track, ok := sess.VideoTrack()
	if !ok {
		slog.Warn("capture session has no video track", "session", sess.ID)
		return
	}

	var s *video.ResolutionSampler
	s = video.NewResolutionSampler(track, w.opts.PlaybackTimeout, func(p video.Playback) {
		w.onPlayback(s, p)
	})
	w.sampler = s
	s.Start(context.Background())
}

func (w *Webcam) detachLocked() {
	if w.sampler != nil {
		w.sampler.Stop()
		w.sampler = nil
	}
	w.session = nil
	w.playback = video.Playback{}
}

func (w *Webcam) onPlayback(s *video.ResolutionSampler, p video.Playback) {
	w.mu.Lock()
	if w.sampler != s {
		w.mu.Unlock()
		return
	}
	w.playback = p
	w.mu.Unlock()
	w.publish()
}

func (w *Webcam) diagnose() diagnosis.Diagnosis {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := w.ctrl.State()
	in := diagnosis.WebcamInput{
		Err:        state.Err,
		HasSession: state.Session != nil,
	}
	if state.Session != nil && state.Session == w.session {
		in.Playing = w.playback.Playing
		in.Resolution = w.playback.Resolution
	}
	return diagnosis.DiagnoseWebcam(in)
}

func (w *Webcam) publish() {
	w.pubMu.Lock()
	defer w.pubMu.Unlock()

	d := w.diagnose()
	if w.diag.Publish(d) {
		slog.Info("webcam diagnosis changed", "status", d.Status, "quality", d.Quality)
		recordDiagnosis(d)
	}
}
