//go:build cgo

package mediadev

import (
	// Register the host camera and microphone drivers.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
)

const driversAvailable = true
