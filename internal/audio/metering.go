// Package audio derives live input levels from captured PCM and provides an
// exec-based capture backend for hosts where arecord or FFmpeg is available.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// MinDB is the minimum dB level (silence).
	MinDB = -60.0
	// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
	MaxSampleValue = 32768.0
	// ClipThreshold is slightly below max to catch near-clips.
	ClipThreshold int16 = 32760
)

// LevelData accumulates S16LE samples across all channels of one frame
// window.
type LevelData struct {
	SumSquares  float64
	Peak        float64
	ClipCount   int
	SampleCount int
}

// ProcessSamples accumulates level data from interleaved S16LE PCM. Every
// channel contributes equally; a trailing odd byte is ignored.
func ProcessSamples(buf []byte, data *LevelData) {
	for i := 0; i+1 < len(buf); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i:]))
		v := float64(sample)

		data.SumSquares += v * v
		if a := math.Abs(v); a > data.Peak {
			data.Peak = a
		}
		if sample >= ClipThreshold || sample <= -ClipThreshold {
			data.ClipCount++
		}
		data.SampleCount++
	}
}

// Level is the normalized reading of one window.
type Level struct {
	// RMS amplitude relative to full scale, in [0,1].
	RMS float64
	// Peak amplitude relative to full scale, in [0,1].
	Peak float64
	// Clips is the number of samples at or near full scale.
	Clips int
}

// CalculateLevel computes the normalized RMS and peak of the accumulated
// samples. An empty window reads as silence.
func CalculateLevel(data *LevelData) Level {
	if data.SampleCount == 0 {
		return Level{}
	}
	rms := math.Sqrt(data.SumSquares / float64(data.SampleCount))
	return Level{
		RMS:   clampUnit(rms / MaxSampleValue),
		Peak:  clampUnit(data.Peak / MaxSampleValue),
		Clips: data.ClipCount,
	}
}

// ToDB converts a normalized level to dBFS, floored at MinDB.
func ToDB(level float64) float64 {
	if level <= 0 {
		return MinDB
	}
	return max(20*math.Log10(level), MinDB)
}

// Reset resets accumulators for the next measurement period.
func (d *LevelData) Reset() {
	*d = LevelData{}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
