// Package mediadev implements capture.Backend on top of pion/mediadevices,
// the Go port of the getUserMedia API.
package mediadev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

// ErrNoTrack is returned when the host grants a stream without a track of
// the requested kind.
var ErrNoTrack = errors.New("stream has no track of the requested kind")

// Backend acquires audio and video through mediadevices.GetUserMedia.
type Backend struct {
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
	enumerate    func() []mediadevices.MediaDeviceInfo
}

// New returns a mediadevices backend.
func New() *Backend {
	return &Backend{
		getUserMedia: mediadevices.GetUserMedia,
		enumerate:    mediadevices.EnumerateDevices,
	}
}

// Devices enumerates host inputs of the given kind.
func (b *Backend) Devices(kind capture.Kind) ([]capture.Device, error) {
	if !driversAvailable {
		return nil, fmt.Errorf("mediadevices built without drivers: %w", capture.ErrCaptureUnsupported)
	}
	want := mediaDeviceType(kind)
	var devices []capture.Device
	for _, info := range b.enumerate() {
		if info.Kind != want {
			continue
		}
		devices = append(devices, capture.Device{
			ID:   info.DeviceID,
			Name: info.Label,
			Kind: kind,
		})
	}
	return devices, nil
}

// Acquire requests one track of the constrained kind. GetUserMedia cannot
// be interrupted: when ctx ends first, the stream is released as soon as it
// arrives.
func (b *Backend) Acquire(ctx context.Context, c capture.Constraints) (*capture.Session, error) {
	if !driversAvailable {
		return nil, fmt.Errorf("mediadevices built without drivers: %w", capture.ErrCaptureUnsupported)
	}

	type result struct {
		stream mediadevices.MediaStream
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		stream, err := b.getUserMedia(streamConstraints(c))
		resCh <- result{stream, err}
	}()

	var res result
	select {
	case res = <-resCh:
	case <-ctx.Done():
		go func() {
			if r := <-resCh; r.err == nil {
				closeTracks(r.stream.GetTracks())
				slog.Info("released capture that arrived after cancellation", "kind", c.Kind)
			}
		}()
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("getUserMedia: %w", res.err)
	}

	track, err := newTrack(c, res.stream)
	if err != nil {
		closeTracks(res.stream.GetTracks())
		return nil, err
	}
	return capture.NewSession(c.Kind, track), nil
}

func newTrack(c capture.Constraints, stream mediadevices.MediaStream) (capture.Track, error) {
	switch c.Kind {
	case capture.KindAudio:
		for _, t := range stream.GetAudioTracks() {
			if at, ok := t.(*mediadevices.AudioTrack); ok {
				closeTracks(otherTracks(stream.GetTracks(), t))
				return newAudioTrack(at, c.DeviceID), nil
			}
		}
	case capture.KindVideo:
		for _, t := range stream.GetVideoTracks() {
			if vt, ok := t.(*mediadevices.VideoTrack); ok {
				closeTracks(otherTracks(stream.GetTracks(), t))
				return newVideoTrack(vt, c), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %w: %s", capture.ErrNoDevice, ErrNoTrack, c.Kind)
}

// streamConstraints translates capture constraints. Only the requested kind
// is constrained, so GetUserMedia opens a single device.
func streamConstraints(c capture.Constraints) mediadevices.MediaStreamConstraints {
	var sc mediadevices.MediaStreamConstraints
	switch c.Kind {
	case capture.KindAudio:
		sc.Audio = func(mc *mediadevices.MediaTrackConstraints) {
			if c.DeviceID != "" {
				mc.DeviceID = prop.StringExact(c.DeviceID)
			}
			mc.SampleRate = prop.Int(cmpOr(c.SampleRate, types.SampleRate))
			mc.ChannelCount = prop.Int(cmpOr(c.Channels, types.Channels))
		}
	case capture.KindVideo:
		sc.Video = func(mc *mediadevices.MediaTrackConstraints) {
			if c.DeviceID != "" {
				mc.DeviceID = prop.StringExact(c.DeviceID)
			}
			if c.Width > 0 {
				mc.Width = prop.Int(c.Width)
			}
			if c.Height > 0 {
				mc.Height = prop.Int(c.Height)
			}
		}
	}
	return sc
}

func mediaDeviceType(kind capture.Kind) mediadevices.MediaDeviceType {
	if kind == capture.KindVideo {
		return mediadevices.VideoInput
	}
	return mediadevices.AudioInput
}

func otherTracks(all []mediadevices.Track, keep mediadevices.Track) []mediadevices.Track {
	var out []mediadevices.Track
	for _, t := range all {
		if t != keep {
			out = append(out, t)
		}
	}
	return out
}

func closeTracks(tracks []mediadevices.Track) {
	for _, t := range tracks {
		if err := t.Close(); err != nil {
			slog.Warn("failed to close track", "track", t.ID(), "error", err)
		}
	}
}

func cmpOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
