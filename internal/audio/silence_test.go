package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSilenceWindow_Defaults(t *testing.T) {
	w := NewSilenceWindow(SilenceConfig{})
	cfg := w.Config()
	assert.Equal(t, DefaultSilenceThreshold, cfg.Threshold)
	assert.Equal(t, DefaultEvaluationWindow, cfg.Window)
}

func TestSilenceWindow_ZeroForWholeWindow(t *testing.T) {
	w := NewSilenceWindow(SilenceConfig{Threshold: 0.001, Window: time.Second})
	start := time.Unix(1000, 0)

	var state SilenceState
	for i := 0; i < 20; i++ {
		state = w.Update(0, start.Add(time.Duration(i)*50*time.Millisecond))
	}
	// 950ms of silence is not yet a full window.
	assert.False(t, state.NoSignal)
	assert.Equal(t, 950*time.Millisecond, state.Duration)

	state = w.Update(0, start.Add(time.Second))
	assert.True(t, state.NoSignal)
	assert.True(t, state.JustEntered)
	assert.True(t, w.NoSignal())

	state = w.Update(0, start.Add(1050*time.Millisecond))
	assert.True(t, state.NoSignal)
	assert.False(t, state.JustEntered)
}

func TestSilenceWindow_ThresholdIsInclusive(t *testing.T) {
	w := NewSilenceWindow(SilenceConfig{Threshold: 0.001, Window: 100 * time.Millisecond})
	start := time.Unix(0, 0)
	w.Update(0.001, start)
	state := w.Update(0.001, start.Add(100*time.Millisecond))
	assert.True(t, state.NoSignal)
}

func TestSilenceWindow_LouderSampleResets(t *testing.T) {
	w := NewSilenceWindow(SilenceConfig{Threshold: 0.001, Window: 100 * time.Millisecond})
	start := time.Unix(0, 0)

	w.Update(0, start)
	w.Update(0, start.Add(150*time.Millisecond))
	assert.True(t, w.NoSignal())

	state := w.Update(0.05, start.Add(200*time.Millisecond))
	assert.False(t, state.NoSignal)
	assert.True(t, state.JustRecovered)

	// Silence has to last a full window again.
	state = w.Update(0, start.Add(250*time.Millisecond))
	assert.False(t, state.NoSignal)
	assert.Zero(t, state.Duration)
}

func TestSilenceWindow_Reset(t *testing.T) {
	w := NewSilenceWindow(SilenceConfig{Window: 10 * time.Millisecond})
	start := time.Unix(0, 0)
	w.Update(0, start)
	w.Update(0, start.Add(20*time.Millisecond))
	assert.True(t, w.NoSignal())

	w.Reset()
	assert.False(t, w.NoSignal())
}
