package mediadev

import (
	"fmt"

	"github.com/oszuidwest/zwfm-devicecheck/internal/audio"
	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

// Audio backend names accepted by AudioBackend.
const (
	BackendMediaDevices = "mediadevices"
	BackendExec         = "exec"
)

// AudioBackend returns the microphone backend by name. An empty name
// selects mediadevices.
func AudioBackend(name, ffmpegPath string) (capture.Backend, error) {
	switch name {
	case "", BackendMediaDevices:
		return New(), nil
	case BackendExec:
		return audio.NewExecBackend(ffmpegPath), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}
