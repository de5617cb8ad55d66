package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/checker"
	"github.com/oszuidwest/zwfm-devicecheck/internal/config"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
	"github.com/oszuidwest/zwfm-devicecheck/internal/meeting"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	ctx      context.Context
	cfg      *config.Config
	mic      *checker.Mic
	webcam   *checker.Webcam
	backends map[capture.Kind]capture.Backend
}

// NewCommandHandler creates a new command handler. Acquisitions it starts
// are bound to ctx, which the daemon cancels on shutdown.
func NewCommandHandler(ctx context.Context, cfg *config.Config, mic *checker.Mic, webcam *checker.Webcam, backends map[capture.Kind]capture.Backend) *CommandHandler {
	return &CommandHandler{
		ctx:      ctx,
		cfg:      cfg,
		mic:      mic,
		webcam:   webcam,
		backends: backends,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "mic/start", "audio/update")
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "mic":
		h.handleMic(action, cmd, send, triggerStatusUpdate)
	case "webcam":
		h.handleWebcam(action, cmd, send, triggerStatusUpdate)
	case "meeting":
		h.handleMeeting(action, cmd, send, triggerStatusUpdate)
	case "devices":
		h.handleDevices(action, cmd, send)
	case "audio":
		h.handleAudio(action, cmd, send)
	case "video":
		h.handleVideo(action, cmd, send)
	case "config":
		h.handleConfig(action, send)
	case "status":
		h.handleStatus(action, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// Meeting returns the composite summary of both checks.
func (h *CommandHandler) Meeting() meeting.Summary {
	return meeting.Summarize(h.mic.Diagnosis(), h.webcam.Diagnosis())
}

// --- Namespace handlers ---

// handleMic routes mic/* commands
func (h *CommandHandler) handleMic(action string, cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	switch action {
	case "start":
		h.acquire(cmd, send, triggerStatusUpdate, h.mic.Start, h.mic.Diagnosis)
	case "retry":
		h.acquire(cmd, send, triggerStatusUpdate, h.mic.Retry, h.mic.Diagnosis)
	case "stop":
		h.mic.Stop()
		SendSuccess(send, cmd.Type, h.mic.Diagnosis())
	case "mute":
		HandleCommand(cmd, send, func(req *MuteRequest) error {
			return h.mic.SetMuted(*req.Muted)
		})
	default:
		slog.Warn("unknown mic action", "action", action)
	}
}

// handleWebcam routes webcam/* commands
func (h *CommandHandler) handleWebcam(action string, cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	switch action {
	case "start":
		h.acquire(cmd, send, triggerStatusUpdate, h.webcam.Start, h.webcam.Diagnosis)
	case "retry":
		h.acquire(cmd, send, triggerStatusUpdate, h.webcam.Retry, h.webcam.Diagnosis)
	case "stop":
		h.webcam.Stop()
		SendSuccess(send, cmd.Type, h.webcam.Diagnosis())
	default:
		slog.Warn("unknown webcam action", "action", action)
	}
}

// handleMeeting routes meeting/* commands
func (h *CommandHandler) handleMeeting(action string, cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	switch action {
	case "get":
		SendSuccess(send, cmd.Type, h.Meeting())
	case "start":
		HandleActionAsync(cmd, send, func() (any, error) {
			defer triggerStatusUpdate()
			ctx, cancel := context.WithTimeout(h.ctx, types.AcquireTimeout)
			defer cancel()
			if err := checker.StartAll(ctx, h.mic, h.webcam); err != nil {
				slog.Info("meeting check acquisition failed", "error", err)
			}
			return h.Meeting(), nil
		})
	default:
		slog.Warn("unknown meeting action", "action", action)
	}
}

// handleDevices routes devices/* commands
func (h *CommandHandler) handleDevices(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		var req DevicesRequest
		if !DecodeAndValidate(cmd, send, &req) {
			return
		}
		kind := capture.Kind(req.Kind)
		backend, ok := h.backends[kind]
		if !ok {
			SendError(send, cmd.Type, capture.ErrCaptureUnsupported)
			return
		}
		devices, err := backend.Devices(kind)
		if err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		if devices == nil {
			devices = []capture.Device{}
		}
		SendSuccess(send, cmd.Type, WSDevicesResponse{Kind: kind, Devices: devices})
	default:
		slog.Warn("unknown devices action", "action", action)
	}
}

// handleConfig routes config/* commands
func (h *CommandHandler) handleConfig(action string, send chan<- any) {
	switch action {
	case "get":
		h.handleConfigGet(send)
	default:
		slog.Warn("unknown config action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string, send chan<- any) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}

// acquire runs a start or retry in the background. Acquisition can block
// on a permission prompt, so the reader must not wait for it. The outcome
// is carried by the diagnosis, not by the command result.
func (h *CommandHandler) acquire(cmd WSCommand, send chan<- any, triggerStatusUpdate func(), run func(context.Context) error, current func() diagnosis.Diagnosis) {
	HandleActionAsync(cmd, send, func() (any, error) {
		defer triggerStatusUpdate()
		ctx, cancel := context.WithTimeout(h.ctx, types.AcquireTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			slog.Info("acquisition failed", "command", cmd.Type, "error", err)
		}
		return current(), nil
	})
}
