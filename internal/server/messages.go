package server

import (
	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/checker"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
	"github.com/oszuidwest/zwfm-devicecheck/internal/meeting"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

// ToolStatus is the runtime state of one device check.
type ToolStatus struct {
	Diagnosis diagnosis.Diagnosis `json:"diagnosis"`
	Guidance  diagnosis.Guidance  `json:"guidance"`
	Acquiring bool                `json:"acquiring"`
	Live      bool                `json:"live"`
	SessionID string              `json:"session_id,omitempty"`
}

// NewToolStatus combines a diagnosis with the controller state behind it.
func NewToolStatus(d diagnosis.Diagnosis, st capture.State) ToolStatus {
	ts := ToolStatus{
		Diagnosis: d,
		Guidance:  d.Guidance(),
		Acquiring: st.Acquiring,
		Live:      st.Session.IsLive(),
	}
	if st.Session != nil {
		ts.SessionID = st.Session.ID
	}
	return ts
}

// WSStatusResponse is sent to clients with the full device check state.
type WSStatusResponse struct {
	Type     string            `json:"type"`     // Message type identifier
	Mic      ToolStatus        `json:"mic"`      // Microphone check
	Webcam   ToolStatus        `json:"webcam"`   // Webcam check
	Meeting  meeting.Summary   `json:"meeting"`  // Composite result
	Settings types.WSSettings  `json:"settings"` // Current settings
	Version  types.VersionInfo `json:"version"`  // Version information
}

// WSLevelsResponse is sent to clients with microphone level updates.
type WSLevelsResponse struct {
	Type   string               `json:"type"`   // Message type identifier
	Levels checker.MeterReading `json:"levels"` // Current meter reading
}

// WSDiagnosisResponse is pushed whenever a diagnosis changes.
type WSDiagnosisResponse struct {
	Type      string              `json:"type"` // "diagnosis"
	Diagnosis diagnosis.Diagnosis `json:"diagnosis"`
	Guidance  diagnosis.Guidance  `json:"guidance"`
}

// NewDiagnosisMessage wraps d for the WebSocket.
func NewDiagnosisMessage(d diagnosis.Diagnosis) WSDiagnosisResponse {
	return WSDiagnosisResponse{Type: "diagnosis", Diagnosis: d, Guidance: d.Guidance()}
}

// WSDevicesResponse answers devices/list.
type WSDevicesResponse struct {
	Kind    capture.Kind     `json:"kind"`
	Devices []capture.Device `json:"devices"`
}
