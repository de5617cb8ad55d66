//go:build windows

package util

import "os"

// ShutdownSignals are the signals that stop the daemon.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal terminates a capture process. Windows cannot deliver SIGINT
// to a child, and a capture process has nothing to flush.
func GracefulSignal(p *os.Process) error {
	return p.Kill()
}
