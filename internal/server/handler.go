// Package server implements the WebSocket commands of the device check page:
// starting, retrying and stopping the microphone and webcam checks, the
// meeting check, device lists and settings.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so clients see the keys
// they sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// commandResult answers one command. Error is a string or a
// *types.ValidationError.
type commandResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// DecodeAndValidate fills req from the command payload. On failure it has
// already answered the command and returns false.
func DecodeAndValidate[T any](cmd WSCommand, send chan<- any, req *T) bool {
	if err := json.Unmarshal(cmd.Data, req); err != nil {
		SendError(send, cmd.Type, fmt.Errorf("invalid JSON: %w", err))
		return false
	}
	if err := validate.Struct(req); err != nil {
		SendValidationErrors(send, cmd.Type, err)
		return false
	}
	return true
}

// HandleCommand decodes and validates a request, applies it, and answers
// with success or the error apply returned.
func HandleCommand[T any](cmd WSCommand, send chan<- any, apply func(*T) error) {
	var req T
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}
	if err := apply(&req); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, nil)
}

// HandleActionAsync runs action off the connection's read loop, since
// acquiring a device can wait on a permission prompt. A panic is reported
// to the client as an internal error.
func HandleActionAsync(cmd WSCommand, send chan<- any, action func() (any, error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in async command", "command", cmd.Type, "panic", r)
				SendError(send, cmd.Type, errors.New("internal error"))
			}
		}()

		data, err := action()
		if err != nil {
			SendError(send, cmd.Type, err)
			return
		}
		SendSuccess(send, cmd.Type, data)
	}()
}

// SendSuccess answers cmdType successfully.
func SendSuccess(send chan<- any, cmdType string, data any) {
	trySend(send, cmdType, commandResult{Type: cmdType + "_result", Success: true, Data: data})
}

// SendError answers cmdType with err.
func SendError(send chan<- any, cmdType string, err error) {
	trySend(send, cmdType, commandResult{Type: cmdType + "_result", Error: err.Error()})
}

// SendValidationErrors answers cmdType with per-field validation failures.
func SendValidationErrors(send chan<- any, cmdType string, err error) {
	verr := types.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), validationMessage(fe), fe.Value())
		}
	} else {
		verr.Add("", err.Error(), nil)
	}
	trySend(send, cmdType, commandResult{Type: cmdType + "_result", Error: verr})
}

// trySend drops msg when the client is not keeping up or has gone.
func trySend(send chan<- any, cmdType string, msg any) {
	select {
	case send <- msg:
	default:
		slog.Warn("dropping command result", "type", cmdType)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed validation %q", fe.Tag())
	}
}
