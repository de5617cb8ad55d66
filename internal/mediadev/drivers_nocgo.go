//go:build !cgo

package mediadev

// The camera and microphone drivers need cgo.
const driversAvailable = false
