package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/video"
)

func TestBucketLevel(t *testing.T) {
	tests := []struct {
		level float64
		want  LevelBucket
	}{
		{0, LevelLow},
		{0.0199, LevelLow},
		{0.02, LevelMedium},
		{0.1, LevelMedium},
		{0.2, LevelMedium},
		{0.2001, LevelStrong},
		{1, LevelStrong},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketLevel(tt.level), "level %v", tt.level)
	}
}

func TestBucketQuality(t *testing.T) {
	tests := []struct {
		height int
		want   Quality
	}{
		{0, QualityLow},
		{480, QualityLow},
		{719, QualityLow},
		{720, QualityHD},
		{1079, QualityHD},
		{1080, QualityFullHD},
		{2160, QualityFullHD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketQuality(tt.height), "height %d", tt.height)
	}
}

func TestDiagnoseMic(t *testing.T) {
	live := MicInput{HasSession: true, TrackEnabled: true, Level: 0.1}

	tests := []struct {
		name  string
		in    MicInput
		want  Status
		level LevelBucket
	}{
		{"permission refused", MicInput{Err: &capture.CaptureError{Kind: capture.PermissionDenied}}, StatusPermissionDenied, ""},
		{"no hardware", MicInput{Err: &capture.CaptureError{Kind: capture.DeviceAbsent}}, StatusNoDevice, ""},
		{"busy", MicInput{Err: &capture.CaptureError{Kind: capture.DeviceBusy}}, StatusInUseElsewhere, ""},
		{"generic failure", MicInput{Err: &capture.CaptureError{Kind: capture.Unknown}}, StatusUnknownError, ""},
		{"host blocked", MicInput{Err: &capture.CaptureError{Kind: capture.Unknown, HostBlocked: true}}, StatusBlockedByBrowser, ""},
		{"error wins over session", MicInput{Err: &capture.CaptureError{Kind: capture.DeviceBusy}, HasSession: true, TrackEnabled: true}, StatusInUseElsewhere, ""},
		{"still initializing", MicInput{}, StatusUnknownError, ""},
		{"muted", MicInput{HasSession: true, TrackEnabled: false, Level: 0.5}, StatusInputMuted, ""},
		{"muted wins over silence", MicInput{HasSession: true, NoSignal: true}, StatusInputMuted, ""},
		{"silent for window", MicInput{HasSession: true, TrackEnabled: true, NoSignal: true}, StatusNoAudioDetected, ""},
		{"nothing heard yet", MicInput{HasSession: true, TrackEnabled: true, Measuring: true}, StatusUnknownError, ""},
		{"silence decided after measuring", MicInput{HasSession: true, TrackEnabled: true, Measuring: true, NoSignal: true}, StatusNoAudioDetected, ""},
		{"muted while measuring", MicInput{HasSession: true, Measuring: true}, StatusInputMuted, ""},
		{"healthy", live, StatusOK, LevelMedium},
		{"quiet but present", MicInput{HasSession: true, TrackEnabled: true, Level: 0.005}, StatusOK, LevelLow},
		{"loud", MicInput{HasSession: true, TrackEnabled: true, Level: 0.6}, StatusOK, LevelStrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiagnoseMic(tt.in)
			assert.Equal(t, DeviceMicrophone, d.Device)
			assert.Equal(t, tt.want, d.Status)
			assert.Equal(t, tt.level, d.Level)
			assert.Equal(t, d, DiagnoseMic(tt.in), "classification must be deterministic")
		})
	}
}

func TestDiagnoseMic_MeasuringIsFlagged(t *testing.T) {
	d := DiagnoseMic(MicInput{HasSession: true, TrackEnabled: true, Measuring: true})
	assert.True(t, d.Measuring)
	assert.False(t, d.OK())

	d = DiagnoseMic(MicInput{HasSession: true, TrackEnabled: true, Level: 0.1})
	assert.False(t, d.Measuring)
}

func TestDiagnoseMic_CarriesErrorKind(t *testing.T) {
	d := DiagnoseMic(MicInput{Err: &capture.CaptureError{Kind: capture.PermissionDenied}})
	assert.Equal(t, capture.PermissionDenied, d.ErrorKind)
	assert.False(t, d.OK())
}

func TestDiagnoseWebcam(t *testing.T) {
	hd := video.Resolution{Width: 1280, Height: 720}

	tests := []struct {
		name    string
		in      WebcamInput
		want    Status
		quality Quality
	}{
		{"permission refused", WebcamInput{Err: &capture.CaptureError{Kind: capture.PermissionDenied}}, StatusPermissionDenied, ""},
		{"no camera", WebcamInput{Err: &capture.CaptureError{Kind: capture.DeviceAbsent}}, StatusNoDevice, ""},
		{"camera busy", WebcamInput{Err: &capture.CaptureError{Kind: capture.DeviceBusy}}, StatusInUseElsewhere, ""},
		{"host blocked", WebcamInput{Err: &capture.CaptureError{Kind: capture.Unknown, HostBlocked: true}}, StatusBlockedByBrowser, ""},
		{"still initializing", WebcamInput{}, StatusUnknownError, ""},
		{"granted but never playing", WebcamInput{HasSession: true, Resolution: hd}, StatusUnknownError, ""},
		{"playing hd", WebcamInput{HasSession: true, Playing: true, Resolution: hd}, StatusOK, QualityHD},
		{"playing 1080p", WebcamInput{HasSession: true, Playing: true, Resolution: video.Resolution{Width: 1920, Height: 1080}}, StatusOK, QualityFullHD},
		{"playing vga", WebcamInput{HasSession: true, Playing: true, Resolution: video.Resolution{Width: 640, Height: 480}}, StatusOK, QualityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiagnoseWebcam(tt.in)
			assert.Equal(t, DeviceWebcam, d.Device)
			assert.Equal(t, tt.want, d.Status)
			assert.Equal(t, tt.quality, d.Quality)
			assert.Equal(t, d, DiagnoseWebcam(tt.in))
		})
	}
}

func TestDiagnoseWebcam_ReportsResolutionOnlyWhenOK(t *testing.T) {
	res := video.Resolution{Width: 1280, Height: 720}
	assert.Equal(t, res, DiagnoseWebcam(WebcamInput{HasSession: true, Playing: true, Resolution: res}).Resolution)
	assert.True(t, DiagnoseWebcam(WebcamInput{HasSession: true, Resolution: res}).Resolution.IsZero())
}

func TestGuidance(t *testing.T) {
	micStatuses := []Status{
		StatusOK, StatusPermissionDenied, StatusNoDevice, StatusInUseElsewhere,
		StatusInputMuted, StatusNoAudioDetected, StatusBlockedByBrowser, StatusUnknownError,
	}
	seen := map[string]Status{}
	for _, status := range micStatuses {
		g := GuidanceFor(DeviceMicrophone, status)
		assert.NotEmpty(t, g.Title, status)
		if prev, dup := seen[g.Title]; dup {
			t.Errorf("%s and %s share guidance %q", prev, status, g.Title)
		}
		seen[g.Title] = status

		if status == StatusOK {
			assert.Empty(t, g.Retry)
			assert.Empty(t, g.Steps)
		} else {
			assert.NotEmpty(t, g.Retry, status)
			assert.NotEmpty(t, g.Steps, status)
		}
	}

	// Statuses that do not apply to a webcam fall back to generic guidance.
	assert.Equal(t, GuidanceFor(DeviceWebcam, StatusUnknownError), GuidanceFor(DeviceWebcam, StatusInputMuted))
	assert.Equal(t, GuidanceFor(DeviceWebcam, StatusOK), Diagnosis{Device: DeviceWebcam, Status: StatusOK}.Guidance())
}
