package mediadev

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/pion/mediadevices"
	mdaudio "github.com/pion/mediadevices/pkg/io/audio"
	mdvideo "github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/wave"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
)

// ErrUnsupportedFormat is returned for audio chunks in a sample format that
// cannot be converted to S16LE.
var ErrUnsupportedFormat = errors.New("unsupported audio sample format")

// audioTrack adapts a mediadevices audio track to an S16LE byte stream.
type audioTrack struct {
	*capture.BaseTrack
	reader mdaudio.Reader

	mu      sync.Mutex
	pending []byte
}

func newAudioTrack(t *mediadevices.AudioTrack, deviceID string) *audioTrack {
	at := &audioTrack{reader: t.NewReader(false)}
	at.BaseTrack = capture.NewBaseTrack(capture.KindAudio, capture.Settings{DeviceID: deviceID}, t.Close)
	return at
}

// Read fills p with interleaved S16LE PCM, pulling chunks from the driver
// as needed. The negotiated rate and channel count are recorded from the
// first chunk.
func (t *audioTrack) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.pending) == 0 {
		chunk, release, err := t.reader.Read()
		if err != nil {
			return 0, err
		}
		info := chunk.ChunkInfo()
		t.UpdateSettings(func(s *capture.Settings) {
			if s.SampleRate == 0 {
				s.SampleRate = info.SamplingRate
				s.Channels = info.Channels
			}
		})
		t.pending, err = appendS16LE(t.pending[:0], chunk)
		if release != nil {
			release()
		}
		if err != nil {
			return 0, err
		}
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// appendS16LE appends chunk to dst as interleaved little-endian int16.
func appendS16LE(dst []byte, chunk wave.Audio) ([]byte, error) {
	info := chunk.ChunkInfo()
	switch a := chunk.(type) {
	case *wave.Int16Interleaved:
		for _, v := range a.Data {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		}
	case *wave.Int16NonInterleaved:
		for i := range info.Len {
			for ch := range info.Channels {
				dst = binary.LittleEndian.AppendUint16(dst, uint16(a.Data[ch][i]))
			}
		}
	case *wave.Float32Interleaved:
		for _, v := range a.Data {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(floatToInt16(v)))
		}
	case *wave.Float32NonInterleaved:
		for i := range info.Len {
			for ch := range info.Channels {
				dst = binary.LittleEndian.AppendUint16(dst, uint16(floatToInt16(a.Data[ch][i])))
			}
		}
	default:
		return dst, fmt.Errorf("%w: %T", ErrUnsupportedFormat, chunk)
	}
	return dst, nil
}

func floatToInt16(v float32) int16 {
	f := math.Round(float64(v) * math.MaxInt16)
	return int16(min(max(f, math.MinInt16), math.MaxInt16))
}

// videoTrack adapts a mediadevices video track to decoded frame metadata.
type videoTrack struct {
	*capture.BaseTrack
	reader mdvideo.Reader
	// readMu serializes driver reads; the reader is not safe for concurrent use.
	readMu sync.Mutex
}

func newVideoTrack(t *mediadevices.VideoTrack, c capture.Constraints) *videoTrack {
	vt := &videoTrack{reader: t.NewReader(false)}
	vt.BaseTrack = capture.NewBaseTrack(capture.KindVideo, capture.Settings{DeviceID: c.DeviceID}, t.Close)
	return vt
}

// ReadFrame returns the size of the next decoded frame. The negotiated
// resolution is recorded from the first frame.
func (t *videoTrack) ReadFrame(ctx context.Context) (capture.Frame, error) {
	type result struct {
		frame capture.Frame
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		t.readMu.Lock()
		defer t.readMu.Unlock()
		img, release, err := t.reader.Read()
		if err != nil {
			resCh <- result{err: err}
			return
		}
		frame := frameOf(img, time.Now())
		if release != nil {
			release()
		}
		resCh <- result{frame: frame}
	}()

	select {
	case r := <-resCh:
		if r.err != nil {
			return capture.Frame{}, r.err
		}
		t.UpdateSettings(func(s *capture.Settings) {
			if s.Width == 0 {
				s.Width = r.frame.Width
				s.Height = r.frame.Height
			}
		})
		return r.frame, nil
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
}

func frameOf(img image.Image, at time.Time) capture.Frame {
	if img == nil {
		return capture.Frame{Timestamp: at}
	}
	b := img.Bounds()
	return capture.Frame{Width: b.Dx(), Height: b.Dy(), Timestamp: at}
}
