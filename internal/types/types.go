// Package types provides shared type definitions used across the device check.
package types

import (
	"time"
)

const (
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
	// AcquireTimeout bounds a user-initiated acquisition, including the time
	// the host spends asking for permission.
	AcquireTimeout = 60000 * time.Millisecond
)

// Audio format constants for PCM capture.
const (
	// SampleRate is the audio sample rate in Hz.
	SampleRate = 48000
	// Channels is the number of audio channels (stereo).
	Channels = 2
)

// WSSettings contains the settings sub-object in status responses.
type WSSettings struct {
	AudioBackend       string  `json:"audio_backend"`        // Microphone backend
	AudioInput         string  `json:"audio_input"`          // Selected audio input device
	SilenceThreshold   float64 `json:"silence_threshold"`    // Normalized no-signal threshold
	EvaluationWindowMs int64   `json:"evaluation_window_ms"` // No-signal evaluation window
	VideoInput         string  `json:"video_input"`          // Selected video input device
	PlaybackTimeoutMs  int64   `json:"playback_timeout_ms"`  // Webcam playback timeout
	Platform           string  `json:"platform"`             // Operating system platform
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
