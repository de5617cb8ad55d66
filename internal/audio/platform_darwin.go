//go:build darwin

package audio

import (
	"regexp"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

func getPlatformConfig() CaptureConfig {
	return CaptureConfig{
		Command:       "ffmpeg",
		DefaultDevice: ":0",
		UsesFFmpeg:    true,
		BuildArgs:     buildDarwinArgs,
	}
}

func buildDarwinArgs(device string) []string {
	return buildFFmpegCaptureArgs("avfoundation", device)
}

// Devices lists AVFoundation audio inputs.
func (cfg *CaptureConfig) Devices() []capture.Device {
	return parseDeviceList(deviceListConfig())
}

func deviceListConfig() DeviceListConfig {
	return DeviceListConfig{
		Command:          []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
		AudioStartMarker: "AVFoundation audio devices:",
		AudioStopMarker:  "AVFoundation video devices:",
		DevicePattern:    regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
		ParseDevice: func(matches []string) *capture.Device {
			if len(matches) < 3 {
				return nil
			}
			return &capture.Device{
				ID:   ":" + matches[1],
				Name: matches[2],
			}
		},
	}
}
