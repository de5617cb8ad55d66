package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
	"github.com/oszuidwest/zwfm-devicecheck/internal/util"
)

// DefaultStartupTimeout bounds how long a capture process may take to
// produce its first PCM bytes.
const DefaultStartupTimeout = 5 * time.Second

// startupReadSize is the first read from a fresh capture process.
const startupReadSize = 4096

// ExecBackend captures audio by spawning the platform capture command
// (arecord on Linux, FFmpeg elsewhere) and reading S16LE PCM from its stdout.
type ExecBackend struct {
	ffmpegPath     string
	startupTimeout time.Duration
	buildCommand   func(device, ffmpegPath string) (string, []string, error)
}

// NewExecBackend returns a backend that uses ffmpegPath on platforms that
// capture through FFmpeg.
func NewExecBackend(ffmpegPath string) *ExecBackend {
	return &ExecBackend{
		ffmpegPath:     ffmpegPath,
		startupTimeout: DefaultStartupTimeout,
		buildCommand:   BuildCaptureCommand,
	}
}

// Devices lists audio inputs. Video is not supported by this backend.
func (b *ExecBackend) Devices(kind capture.Kind) ([]capture.Device, error) {
	if kind != capture.KindAudio {
		return nil, fmt.Errorf("exec backend cannot list %s devices: %w", kind, capture.ErrCaptureUnsupported)
	}
	return ListDevices(), nil
}

// Acquire starts the capture process and returns once it has produced
// audio. A process that exits first is reported with the last line of its
// stderr so the failure can be classified.
func (b *ExecBackend) Acquire(ctx context.Context, c capture.Constraints) (*capture.Session, error) {
	if c.Kind != capture.KindAudio {
		return nil, fmt.Errorf("exec backend cannot capture %s: %w", c.Kind, capture.ErrCaptureUnsupported)
	}

	name, args, err := b.buildCommand(c.DeviceID, b.ffmpegPath)
	if err != nil {
		if errors.Is(err, ErrNoAudioDevice) {
			return nil, fmt.Errorf("%w: %w", capture.ErrNoDevice, err)
		}
		return nil, util.WrapError("build capture command", err)
	}

	slog.Info("starting audio capture", "command", name, "input", c.DeviceID)

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, name, args...)
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = types.ShutdownTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, util.WrapError("create stdout pipe", err)
	}
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s is not available: %w: %w", name, capture.ErrCaptureUnsupported, err)
		}
		return nil, util.WrapError("start "+name, err)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	type readResult struct {
		n   int
		err error
	}
	first := make([]byte, startupReadSize)
	readCh := make(chan readResult, 1)
	go func() {
		n, err := stdout.Read(first)
		readCh <- readResult{n, err}
	}()

	timer := time.NewTimer(b.startupTimeout)
	defer timer.Stop()

	select {
	case r := <-readCh:
		if r.n == 0 {
			cancel()
			waitErr := <-waitDone
			return nil, exitError(name, stderr.String(), waitErr, r.err)
		}
		first = first[:r.n]
	case <-ctx.Done():
		cancel()
		<-waitDone
		return nil, ctx.Err()
	case <-timer.C:
		cancel()
		<-waitDone
		return nil, fmt.Errorf("%s produced no audio within %s", name, b.startupTimeout)
	}

	settings := capture.Settings{
		DeviceID:   c.DeviceID,
		SampleRate: types.SampleRate,
		Channels:   types.Channels,
	}
	track := &execTrack{
		r: io.MultiReader(bytes.NewReader(first), stdout),
	}
	track.BaseTrack = capture.NewBaseTrack(capture.KindAudio, settings, func() error {
		cancel()
		waitErr := <-waitDone
		slog.Debug("audio capture exited", "command", name, "error", waitErr)
		return nil
	})

	return capture.NewSession(capture.KindAudio, track), nil
}

// exitError describes a capture process that ended before producing audio.
func exitError(name, stderr string, waitErr, readErr error) error {
	msg := util.ExtractLastError(stderr)
	switch {
	case msg != "" && waitErr != nil:
		return fmt.Errorf("%s: %s: %w", name, msg, waitErr)
	case msg != "":
		return fmt.Errorf("%s: %s", name, msg)
	case waitErr != nil:
		return fmt.Errorf("%s exited before producing audio: %w", name, waitErr)
	case readErr != nil:
		return fmt.Errorf("%s closed its output: %w", name, readErr)
	default:
		return fmt.Errorf("%s exited before producing audio", name)
	}
}

// execTrack is the audio track of a capture process.
type execTrack struct {
	*capture.BaseTrack
	r io.Reader
}

func (t *execTrack) Read(p []byte) (int, error) {
	return t.r.Read(p)
}

// syncBuffer is a bytes.Buffer that can be written by the exec package while
// being read for error reporting.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
