// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/audio"
	"github.com/oszuidwest/zwfm-devicecheck/internal/checker"
	"github.com/oszuidwest/zwfm-devicecheck/internal/util"
	"github.com/oszuidwest/zwfm-devicecheck/internal/video"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebHost           = "127.0.0.1"
	DefaultWebPort           = 8080
	DefaultTitle             = "Device check"
	DefaultColorLight        = "#E6007E"
	DefaultColorDark         = "#E6007E"
	DefaultAudioBackend      = "mediadevices"
	DefaultSilenceThreshold  = audio.DefaultSilenceThreshold
	DefaultEvaluationWindow  = int64(audio.DefaultEvaluationWindow / time.Millisecond)
	DefaultSampleIntervalMs  = int64(audio.DefaultSampleInterval / time.Millisecond)
	DefaultPlaybackTimeoutMs = int64(video.DefaultPlaybackTimeout / time.Millisecond)
)

// Validation bounds for numeric settings.
const (
	MinEvaluationWindowMs = 500
	MaxEvaluationWindowMs = 60000
	MinSampleIntervalMs   = 10
	MaxSampleIntervalMs   = 1000
	MinPlaybackTimeoutMs  = 500
	MaxPlaybackTimeoutMs  = 60000
	MaxVideoDimension     = 7680
)

// Validation patterns define regular expressions for configuration value validation.
var (
	// Title: any printable characters except control chars
	titlePattern = regexp.MustCompile(`^[^\x00-\x1F\x7F]+$`)
	colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path"` // Path to FFmpeg binary (empty = use PATH)
	Host       string `json:"host"`        // HTTP bind address
	Port       int    `json:"port"`        // HTTP server port
	UpdateRepo string `json:"update_repo"` // GitHub "owner/name" to check for releases (empty = off)
}

// WebConfig holds page branding settings.
type WebConfig struct {
	Title      string `json:"title"`       // Page title
	ColorLight string `json:"color_light"` // Theme color for light mode (#RRGGBB)
	ColorDark  string `json:"color_dark"`  // Theme color for dark mode (#RRGGBB)
}

// AudioConfig holds microphone check settings.
type AudioConfig struct {
	Backend            string  `json:"backend"`              // mediadevices or exec
	Input              string  `json:"input"`                // Audio input device identifier
	SilenceThreshold   float64 `json:"silence_threshold"`    // Normalized level counted as silent
	EvaluationWindowMs int64   `json:"evaluation_window_ms"` // How long silence lasts before no_signal
	SampleIntervalMs   int64   `json:"sample_interval_ms"`   // Level sample period
}

// VideoConfig holds webcam check settings.
type VideoConfig struct {
	Input             string `json:"input"`               // Video input device identifier
	Width             int    `json:"width"`               // Preferred width (0 = driver default)
	Height            int    `json:"height"`              // Preferred height (0 = driver default)
	PlaybackTimeoutMs int64  `json:"playback_timeout_ms"` // How long to wait for the first frame
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled *bool `json:"enabled"` // Serve /metrics (nil = true)
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System  SystemConfig  `json:"system"`
	Web     WebConfig     `json:"web"`
	Audio   AudioConfig   `json:"audio"`
	Video   VideoConfig   `json:"video"`
	Metrics MetricsConfig `json:"metrics"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	c := &Config{filePath: filePath}
	c.applyDefaults()
	return c
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := c.validate(); err != nil {
		return err
	}

	return nil
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	title := c.Web.Title
	if title == "" || len(title) > 40 || !titlePattern.MatchString(title) {
		return fmt.Errorf("invalid title %q: must be 1-40 printable characters", title)
	}
	if !colorPattern.MatchString(c.Web.ColorLight) {
		return fmt.Errorf("invalid color_light %q: must be hex format (#RRGGBB)", c.Web.ColorLight)
	}
	if !colorPattern.MatchString(c.Web.ColorDark) {
		return fmt.Errorf("invalid color_dark %q: must be hex format (#RRGGBB)", c.Web.ColorDark)
	}
	if c.System.Port < 1 || c.System.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", c.System.Port)
	}
	if c.System.UpdateRepo != "" && !repoPattern.MatchString(c.System.UpdateRepo) {
		return fmt.Errorf("invalid update_repo %q: must be owner/name", c.System.UpdateRepo)
	}
	switch c.Audio.Backend {
	case "mediadevices", "exec":
	default:
		return fmt.Errorf("invalid audio backend %q: must be mediadevices or exec", c.Audio.Backend)
	}
	if err := ValidateAudio(c.Audio.SilenceThreshold, c.Audio.EvaluationWindowMs); err != nil {
		return err
	}
	if c.Audio.SampleIntervalMs < MinSampleIntervalMs || c.Audio.SampleIntervalMs > MaxSampleIntervalMs {
		return fmt.Errorf("invalid sample_interval_ms %d: must be %d-%d", c.Audio.SampleIntervalMs, MinSampleIntervalMs, MaxSampleIntervalMs)
	}
	if err := ValidateVideo(c.Video.PlaybackTimeoutMs); err != nil {
		return err
	}
	if c.Video.Width < 0 || c.Video.Width > MaxVideoDimension || c.Video.Height < 0 || c.Video.Height > MaxVideoDimension {
		return fmt.Errorf("invalid video size %dx%d", c.Video.Width, c.Video.Height)
	}
	return nil
}

// ValidateAudio checks microphone thresholds supplied by a client.
func ValidateAudio(threshold float64, windowMs int64) error {
	if threshold <= 0 || threshold >= 1 {
		return fmt.Errorf("invalid silence_threshold %g: must be between 0 and 1", threshold)
	}
	if windowMs < MinEvaluationWindowMs || windowMs > MaxEvaluationWindowMs {
		return fmt.Errorf("invalid evaluation_window_ms %d: must be %d-%d", windowMs, MinEvaluationWindowMs, MaxEvaluationWindowMs)
	}
	return nil
}

// ValidateVideo checks webcam timing supplied by a client.
func ValidateVideo(timeoutMs int64) error {
	if timeoutMs < MinPlaybackTimeoutMs || timeoutMs > MaxPlaybackTimeoutMs {
		return fmt.Errorf("invalid playback_timeout_ms %d: must be %d-%d", timeoutMs, MinPlaybackTimeoutMs, MaxPlaybackTimeoutMs)
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	c.System.Host = cmp.Or(c.System.Host, DefaultWebHost)
	c.System.Port = cmp.Or(c.System.Port, DefaultWebPort)

	c.Web.Title = cmp.Or(c.Web.Title, DefaultTitle)
	c.Web.ColorLight = cmp.Or(c.Web.ColorLight, DefaultColorLight)
	c.Web.ColorDark = cmp.Or(c.Web.ColorDark, DefaultColorDark)

	c.Audio.Backend = cmp.Or(c.Audio.Backend, DefaultAudioBackend)
	c.Audio.SilenceThreshold = cmp.Or(c.Audio.SilenceThreshold, DefaultSilenceThreshold)
	c.Audio.EvaluationWindowMs = cmp.Or(c.Audio.EvaluationWindowMs, DefaultEvaluationWindow)
	c.Audio.SampleIntervalMs = cmp.Or(c.Audio.SampleIntervalMs, DefaultSampleIntervalMs)

	c.Video.PlaybackTimeoutMs = cmp.Or(c.Video.PlaybackTimeoutMs, DefaultPlaybackTimeoutMs)

	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Setters for individual settings ---

// SetAudio updates the microphone settings and saves the configuration.
func (c *Config) SetAudio(input string, threshold float64, windowMs int64) error {
	if err := ValidateAudio(threshold, windowMs); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	c.Audio.SilenceThreshold = threshold
	c.Audio.EvaluationWindowMs = windowMs
	return c.saveLocked()
}

// SetVideo updates the webcam settings and saves the configuration.
func (c *Config) SetVideo(input string, timeoutMs int64) error {
	if err := ValidateVideo(timeoutMs); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Video.Input = input
	c.Video.PlaybackTimeoutMs = timeoutMs
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	FFmpegPath string
	WebHost    string
	WebPort    int
	UpdateRepo string

	// Web/Branding
	Title      string
	ColorLight string
	ColorDark  string

	// Audio
	AudioBackend       string
	AudioInput         string
	SilenceThreshold   float64
	EvaluationWindowMs int64
	SampleIntervalMs   int64

	// Video
	VideoInput        string
	VideoWidth        int
	VideoHeight       int
	PlaybackTimeoutMs int64

	// Metrics
	MetricsEnabled bool
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		FFmpegPath: c.System.FFmpegPath,
		WebHost:    cmp.Or(c.System.Host, DefaultWebHost),
		WebPort:    cmp.Or(c.System.Port, DefaultWebPort),
		UpdateRepo: c.System.UpdateRepo,

		Title:      cmp.Or(c.Web.Title, DefaultTitle),
		ColorLight: cmp.Or(c.Web.ColorLight, DefaultColorLight),
		ColorDark:  cmp.Or(c.Web.ColorDark, DefaultColorDark),

		AudioBackend:       cmp.Or(c.Audio.Backend, DefaultAudioBackend),
		AudioInput:         c.Audio.Input,
		SilenceThreshold:   cmp.Or(c.Audio.SilenceThreshold, DefaultSilenceThreshold),
		EvaluationWindowMs: cmp.Or(c.Audio.EvaluationWindowMs, DefaultEvaluationWindow),
		SampleIntervalMs:   cmp.Or(c.Audio.SampleIntervalMs, DefaultSampleIntervalMs),

		VideoInput:        c.Video.Input,
		VideoWidth:        c.Video.Width,
		VideoHeight:       c.Video.Height,
		PlaybackTimeoutMs: cmp.Or(c.Video.PlaybackTimeoutMs, DefaultPlaybackTimeoutMs),

		MetricsEnabled: c.Metrics.Enabled == nil || *c.Metrics.Enabled,
	}
}

// MicOptions returns the microphone check options.
func (s *Snapshot) MicOptions() checker.MicOptions {
	return checker.MicOptions{
		DeviceID: s.AudioInput,
		Silence: audio.SilenceConfig{
			Threshold: s.SilenceThreshold,
			Window:    time.Duration(s.EvaluationWindowMs) * time.Millisecond,
		},
		SampleInterval: time.Duration(s.SampleIntervalMs) * time.Millisecond,
	}
}

// WebcamOptions returns the webcam check options.
func (s *Snapshot) WebcamOptions() checker.WebcamOptions {
	return checker.WebcamOptions{
		DeviceID:        s.VideoInput,
		Width:           s.VideoWidth,
		Height:          s.VideoHeight,
		PlaybackTimeout: time.Duration(s.PlaybackTimeoutMs) * time.Millisecond,
	}
}
