//go:build !windows

package util

import (
	"os"
	"syscall"
)

// ShutdownSignals are the signals that stop the daemon.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// GracefulSignal asks a capture process to exit. arecord and FFmpeg both
// close the device cleanly on SIGINT.
func GracefulSignal(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}
