package server

import (
	"cmp"
	"log/slog"

	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

// handleAudio routes audio/* commands
func (h *CommandHandler) handleAudio(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleAudioUpdate(cmd, send)
	default:
		slog.Warn("unknown audio action", "action", action)
	}
}

// handleVideo routes video/* commands
func (h *CommandHandler) handleVideo(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleVideoUpdate(cmd, send)
	default:
		slog.Warn("unknown video action", "action", action)
	}
}

// handleAudioUpdate processes an audio/update command. New settings apply
// to the next acquisition; a live session is left alone.
func (h *CommandHandler) handleAudioUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *AudioUpdateRequest) error {
		cur := h.cfg.Snapshot()
		input := cur.AudioInput
		if req.Input != nil {
			input = *req.Input
		}
		threshold := cur.SilenceThreshold
		if req.SilenceThreshold != nil {
			threshold = *req.SilenceThreshold
		}
		windowMs := cmp.Or(ptrValue(req.EvaluationWindowMs), cur.EvaluationWindowMs)

		if err := h.cfg.SetAudio(input, threshold, windowMs); err != nil {
			return err
		}
		slog.Info("audio/update: settings changed", "input", input, "threshold", threshold, "window_ms", windowMs)

		snap := h.cfg.Snapshot()
		h.mic.SetOptions(snap.MicOptions())
		return nil
	})
}

// handleVideoUpdate processes a video/update command.
func (h *CommandHandler) handleVideoUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *VideoUpdateRequest) error {
		cur := h.cfg.Snapshot()
		input := cur.VideoInput
		if req.Input != nil {
			input = *req.Input
		}
		timeoutMs := cmp.Or(ptrValue(req.PlaybackTimeoutMs), cur.PlaybackTimeoutMs)

		if err := h.cfg.SetVideo(input, timeoutMs); err != nil {
			return err
		}
		slog.Info("video/update: settings changed", "input", input, "timeout_ms", timeoutMs)

		snap := h.cfg.Snapshot()
		h.webcam.SetOptions(snap.WebcamOptions())
		return nil
	})
}

// handleConfigGet sends the current configuration.
func (h *CommandHandler) handleConfigGet(send chan<- any) {
	trySend(send, "config", types.WSConfigResponse{
		Type:   "config",
		Config: h.cfg.Snapshot(),
	})
}

func ptrValue[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
