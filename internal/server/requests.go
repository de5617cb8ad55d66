package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// MuteRequest is the request body for mic/mute.
type MuteRequest struct {
	Muted *bool `json:"muted" validate:"required"`
}

// DevicesRequest is the request body for devices/list.
type DevicesRequest struct {
	Kind string `json:"kind" validate:"required,oneof=audio video"`
}

// AudioUpdateRequest is the request body for audio/update.
type AudioUpdateRequest struct {
	Input              *string  `json:"input" validate:"omitempty,max=256"`
	SilenceThreshold   *float64 `json:"silence_threshold" validate:"omitempty,gt=0,lt=1"`
	EvaluationWindowMs *int64   `json:"evaluation_window_ms" validate:"omitempty,gte=500,lte=60000"`
}

// VideoUpdateRequest is the request body for video/update.
type VideoUpdateRequest struct {
	Input             *string `json:"input" validate:"omitempty,max=256"`
	PlaybackTimeoutMs *int64  `json:"playback_timeout_ms" validate:"omitempty,gte=500,lte=60000"`
}
