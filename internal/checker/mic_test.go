package checker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-devicecheck/internal/audio"
	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
)

const waitFor = 2 * time.Second

func testMicOptions() MicOptions {
	return MicOptions{
		Silence:        audio.SilenceConfig{Threshold: 0.001, Window: 150 * time.Millisecond},
		SampleInterval: 10 * time.Millisecond,
	}
}

func eventuallyStatus(t *testing.T, diag func() diagnosis.Diagnosis, want diagnosis.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return diag().Status == want
	}, waitFor, 5*time.Millisecond, "want %s, last %s", want, diag().Status)
}

func TestMic_InitialDiagnosisIsNeutral(t *testing.T) {
	m := NewMic(&stubBackend{newTrack: func() capture.Track { return newToneTrack(0) }}, testMicOptions())
	defer m.Close()

	assert.Equal(t, diagnosis.StatusUnknownError, m.Diagnosis().Status)
	assert.False(t, m.Level().Live)
}

func TestMic_PermissionDeniedThenRetry(t *testing.T) {
	backend := &stubBackend{
		errs:     []error{capture.NewNamedError("NotAllowedError", "Permission denied")},
		newTrack: func() capture.Track { return newToneTrack(3000) },
	}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	require.Error(t, m.Start(context.Background()))
	d := m.Diagnosis()
	assert.Equal(t, diagnosis.StatusPermissionDenied, d.Status)
	assert.Equal(t, capture.PermissionDenied, d.ErrorKind)
	assert.Nil(t, m.State().Session)

	require.NoError(t, m.Retry(context.Background()))
	assert.Nil(t, m.State().Err)
	eventuallyStatus(t, m.Diagnosis, diagnosis.StatusOK)
	require.Eventually(t, func() bool {
		return m.Diagnosis().Level == diagnosis.LevelMedium
	}, waitFor, 5*time.Millisecond)
}

func TestMic_MutedTrack(t *testing.T) {
	backend := &stubBackend{newTrack: func() capture.Track { return newToneTrack(3000) }}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.SetMuted(true))
	assert.Equal(t, diagnosis.StatusInputMuted, m.Diagnosis().Status)
	assert.True(t, m.Level().Muted)

	require.NoError(t, m.SetMuted(false))
	eventuallyStatus(t, m.Diagnosis, diagnosis.StatusOK)
}

func TestMic_SetMutedWithoutSession(t *testing.T) {
	m := NewMic(&stubBackend{}, testMicOptions())
	defer m.Close()
	assert.ErrorIs(t, m.SetMuted(true), ErrNoSession)
}

func TestMic_SilentForWholeWindow(t *testing.T) {
	backend := &stubBackend{newTrack: func() capture.Track { return newToneTrack(0) }}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	eventuallyStatus(t, m.Diagnosis, diagnosis.StatusNoAudioDetected)
	assert.True(t, m.Level().NoSignal)
}

func TestMic_SilentInputIsNeverReportedOK(t *testing.T) {
	backend := &stubBackend{newTrack: func() capture.Track { return newToneTrack(0) }}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	var sawOK, sawMeasuring atomic.Bool
	require.Eventually(t, func() bool {
		d := m.Diagnosis()
		if d.OK() {
			sawOK.Store(true)
		}
		if d.Measuring {
			sawMeasuring.Store(true)
		}
		return d.Status == diagnosis.StatusNoAudioDetected
	}, waitFor, time.Millisecond)
	assert.False(t, sawOK.Load(), "silent input reported ok")
	assert.True(t, sawMeasuring.Load())
}

func TestMic_SignalReturnsAfterSilence(t *testing.T) {
	tone := newToneTrack(0)
	backend := &stubBackend{newTrack: func() capture.Track { return tone }}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	eventuallyStatus(t, m.Diagnosis, diagnosis.StatusNoAudioDetected)

	tone.setValue(20000)
	eventuallyStatus(t, m.Diagnosis, diagnosis.StatusOK)
	assert.Equal(t, diagnosis.LevelStrong, m.Diagnosis().Level)
	assert.Greater(t, m.Level().HeldPeak, 0.5)
}

func TestMic_StopReleasesTrack(t *testing.T) {
	backend := &stubBackend{newTrack: func() capture.Track { return newToneTrack(1000) }}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 1, backend.liveTracks())

	m.Stop()
	assert.Zero(t, backend.liveTracks())
	assert.Equal(t, diagnosis.StatusUnknownError, m.Diagnosis().Status)
	assert.False(t, m.Level().Live)
}

func TestMic_CloseWhileAcquiring(t *testing.T) {
	backend := &stubBackend{
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
		newTrack: func() capture.Track { return newToneTrack(1000) },
	}
	m := NewMic(backend, testMicOptions())

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	<-backend.entered
	m.Close()
	close(backend.gate)

	assert.ErrorIs(t, <-done, capture.ErrControllerClosed)
	assert.Zero(t, backend.liveTracks())
}

func TestMic_Subscribe(t *testing.T) {
	backend := &stubBackend{
		errs:     []error{capture.NewNamedError("NotFoundError", "")},
		newTrack: func() capture.Track { return newToneTrack(1000) },
	}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	ch, cancel := m.Subscribe()
	defer cancel()
	assert.Equal(t, diagnosis.StatusUnknownError, (<-ch).Status)

	_ = m.Start(context.Background())
	select {
	case d := <-ch:
		assert.Equal(t, diagnosis.StatusNoDevice, d.Status)
	case <-time.After(waitFor):
		t.Fatal("no diagnosis published")
	}
}

func TestMic_SetOptionsAppliesOnNextStart(t *testing.T) {
	backend := &stubBackend{newTrack: func() capture.Track { return newToneTrack(1000) }}
	m := NewMic(backend, testMicOptions())
	defer m.Close()

	opts := testMicOptions()
	opts.DeviceID = "hw:2"
	m.SetOptions(opts)
	require.NoError(t, m.Start(context.Background()))

	c := backend.lastConstraints()
	assert.Equal(t, "hw:2", c.DeviceID)
	assert.Equal(t, capture.KindAudio, c.Kind)
}
