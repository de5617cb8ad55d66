// Package diagnosis turns capture state and sampled measurements into a
// single user-facing status per device. Every function here is pure.
package diagnosis

import (
	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/video"
)

// Status is the classified state of one device.
type Status string

// Diagnosis statuses.
const (
	StatusOK               Status = "ok"
	StatusPermissionDenied Status = "permission_denied"
	StatusNoDevice         Status = "no_device"
	StatusInUseElsewhere   Status = "in_use_elsewhere"
	StatusInputMuted       Status = "input_muted"       // audio only
	StatusNoAudioDetected  Status = "no_audio_detected" // audio only
	StatusBlockedByBrowser Status = "blocked_by_browser"
	StatusUnknownError     Status = "unknown_error"
)

// Device names the hardware a diagnosis is about.
type Device string

// Devices.
const (
	DeviceMicrophone Device = "microphone"
	DeviceWebcam     Device = "webcam"
)

// LevelBucket is the coarse input level reported with a healthy microphone.
type LevelBucket string

// Level buckets.
const (
	LevelLow    LevelBucket = "Low"
	LevelMedium LevelBucket = "Medium"
	LevelStrong LevelBucket = "Strong"
)

// Quality is the coarse resolution class reported with a healthy webcam.
type Quality string

// Quality buckets.
const (
	QualityFullHD Quality = "full_hd"
	QualityHD     Quality = "hd"
	QualityLow    Quality = "low"
)

const (
	lowLevelMax    = 0.02
	mediumLevelMax = 0.2
	fullHDHeight   = 1080
	hdHeight       = 720
)

// Diagnosis is one classification result. It is comparable, so callers can
// detect changes with ==.
type Diagnosis struct {
	Device     Device            `json:"device"`
	Status     Status            `json:"status"`
	ErrorKind  capture.ErrorKind `json:"error_kind,omitempty"`
	Level      LevelBucket       `json:"level,omitempty"`
	Resolution video.Resolution  `json:"resolution,omitzero"`
	Quality    Quality           `json:"quality,omitempty"`
	// Measuring is set while a live microphone has not yet produced
	// audible input and the evaluation window is still open.
	Measuring bool `json:"measuring,omitzero"`
}

// OK reports whether the device passed.
func (d Diagnosis) OK() bool {
	return d.Status == StatusOK
}

// BucketLevel maps a normalized level to its bucket.
func BucketLevel(level float64) LevelBucket {
	switch {
	case level <= lowLevelMax:
		return LevelLow
	case level <= mediumLevelMax:
		return LevelMedium
	default:
		return LevelStrong
	}
}

// BucketQuality maps a negotiated frame height to its quality class.
func BucketQuality(height int) Quality {
	switch {
	case height >= fullHDHeight:
		return QualityFullHD
	case height >= hdHeight:
		return QualityHD
	default:
		return QualityLow
	}
}

// MicInput is everything the microphone classifier looks at.
type MicInput struct {
	Err          *capture.CaptureError
	HasSession   bool
	TrackEnabled bool
	Level        float64 // latest normalized level
	NoSignal     bool    // level stayed near-silent for the evaluation window
	Measuring    bool    // nothing above the silence threshold heard yet
}

// WebcamInput is everything the webcam classifier looks at.
type WebcamInput struct {
	Err        *capture.CaptureError
	HasSession bool
	Playing    bool // first frame decoded
	Resolution video.Resolution
}

// DiagnoseMic classifies microphone state. Rules are evaluated in order and
// the first match wins.
func DiagnoseMic(in MicInput) Diagnosis {
	d := Diagnosis{Device: DeviceMicrophone}
	if shared(&d, in.Err, in.HasSession) {
		return d
	}

	switch {
	case !in.TrackEnabled:
		d.Status = StatusInputMuted
	case in.NoSignal:
		d.Status = StatusNoAudioDetected
	case in.Measuring:
		// Undecided until the input is heard or the window elapses.
		d.Status = StatusUnknownError
		d.Measuring = true
	default:
		d.Status = StatusOK
		d.Level = BucketLevel(in.Level)
	}
	return d
}

// DiagnoseWebcam classifies webcam state. A granted session that never
// starts playing is not ok.
func DiagnoseWebcam(in WebcamInput) Diagnosis {
	d := Diagnosis{Device: DeviceWebcam}
	if shared(&d, in.Err, in.HasSession) {
		return d
	}

	if !in.Playing {
		d.Status = StatusUnknownError
		return d
	}
	d.Status = StatusOK
	d.Resolution = in.Resolution
	d.Quality = BucketQuality(in.Resolution.Height)
	return d
}

// shared applies the rules common to both devices and reports whether they
// decided the status.
func shared(d *Diagnosis, err *capture.CaptureError, hasSession bool) bool {
	if err != nil {
		d.ErrorKind = err.Kind
		d.Status = errorStatus(err)
		return true
	}
	if !hasSession {
		// Nothing resolved yet; stay neutral rather than flash a failure.
		d.Status = StatusUnknownError
		return true
	}
	return false
}

func errorStatus(err *capture.CaptureError) Status {
	switch err.Kind {
	case capture.PermissionDenied:
		return StatusPermissionDenied
	case capture.DeviceAbsent:
		return StatusNoDevice
	case capture.DeviceBusy:
		return StatusInUseElsewhere
	}
	if err.HostBlocked {
		return StatusBlockedByBrowser
	}
	return StatusUnknownError
}
