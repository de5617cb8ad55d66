package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// handleAPIDiagnosis returns both diagnoses and the meeting summary.
// GET /api/diagnosis
func (s *Server) handleAPIDiagnosis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

// guidanceEntry is one row of the guidance table.
type guidanceEntry struct {
	Device   diagnosis.Device   `json:"device"`
	Status   diagnosis.Status   `json:"status"`
	Guidance diagnosis.Guidance `json:"guidance"`
}

// guidanceStatuses lists the statuses each device can report.
var guidanceStatuses = map[diagnosis.Device][]diagnosis.Status{
	diagnosis.DeviceMicrophone: {
		diagnosis.StatusOK,
		diagnosis.StatusPermissionDenied,
		diagnosis.StatusNoDevice,
		diagnosis.StatusInUseElsewhere,
		diagnosis.StatusInputMuted,
		diagnosis.StatusNoAudioDetected,
		diagnosis.StatusBlockedByBrowser,
		diagnosis.StatusUnknownError,
	},
	diagnosis.DeviceWebcam: {
		diagnosis.StatusOK,
		diagnosis.StatusPermissionDenied,
		diagnosis.StatusNoDevice,
		diagnosis.StatusInUseElsewhere,
		diagnosis.StatusBlockedByBrowser,
		diagnosis.StatusUnknownError,
	},
}

// handleAPIGuidance returns the full guidance table for support staff.
// GET /api/guidance
func (s *Server) handleAPIGuidance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var entries []guidanceEntry
	for _, device := range []diagnosis.Device{diagnosis.DeviceMicrophone, diagnosis.DeviceWebcam} {
		for _, status := range guidanceStatuses[device] {
			entries = append(entries, guidanceEntry{
				Device:   device,
				Status:   status,
				Guidance: diagnosis.GuidanceFor(device, status),
			})
		}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// apiConfigResponse is the configuration exposed to the frontend.
type apiConfigResponse struct {
	Title              string  `json:"title"`
	AudioBackend       string  `json:"audio_backend"`
	AudioInput         string  `json:"audio_input"`
	SilenceThreshold   float64 `json:"silence_threshold"`
	EvaluationWindowMs int64   `json:"evaluation_window_ms"`
	SampleIntervalMs   int64   `json:"sample_interval_ms"`
	VideoInput         string  `json:"video_input"`
	VideoWidth         int     `json:"video_width,omitempty"`
	VideoHeight        int     `json:"video_height,omitempty"`
	PlaybackTimeoutMs  int64   `json:"playback_timeout_ms"`
	MetricsEnabled     bool    `json:"metrics_enabled"`
	Platform           string  `json:"platform"`
}

// handleAPIConfig returns the configuration for the frontend.
// GET /api/config
func (s *Server) handleAPIConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := s.config.Snapshot()
	s.writeJSON(w, http.StatusOK, apiConfigResponse{
		Title:              cfg.Title,
		AudioBackend:       cfg.AudioBackend,
		AudioInput:         cfg.AudioInput,
		SilenceThreshold:   cfg.SilenceThreshold,
		EvaluationWindowMs: cfg.EvaluationWindowMs,
		SampleIntervalMs:   cfg.SampleIntervalMs,
		VideoInput:         cfg.VideoInput,
		VideoWidth:         cfg.VideoWidth,
		VideoHeight:        cfg.VideoHeight,
		PlaybackTimeoutMs:  cfg.PlaybackTimeoutMs,
		MetricsEnabled:     cfg.MetricsEnabled,
		Platform:           runtime.GOOS,
	})
}

// handleAPIDevices returns the input devices of one kind.
// GET /api/devices?kind=audio|video
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	kind := capture.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = capture.KindAudio
	}
	backend, ok := s.backends[kind]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "kind must be audio or video")
		return
	}

	devices, err := backend.Devices(kind)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if devices == nil {
		devices = []capture.Device{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"devices": devices,
	})
}
