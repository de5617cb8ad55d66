package capture

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// ErrorKind classifies a failed acquisition attempt.
type ErrorKind string

const (
	// PermissionDenied means the user or a policy refused access.
	PermissionDenied ErrorKind = "permission-denied"
	// DeviceAbsent means no matching hardware exists.
	DeviceAbsent ErrorKind = "device-absent"
	// DeviceBusy means the hardware exists but could not be opened.
	DeviceBusy ErrorKind = "device-busy"
	// Unknown covers every other failure.
	Unknown ErrorKind = "unknown"
)

// Sentinel errors that backends can wrap to steer classification.
var (
	ErrCaptureUnsupported = errors.New("capture is not supported on this host")
	ErrNoDevice           = errors.New("no matching input device")
	ErrDeviceBusy         = errors.New("input device is busy")
	ErrPermission         = errors.New("access to input device refused")
)

// CaptureError is a classified acquisition failure.
type CaptureError struct {
	Kind ErrorKind `json:"kind"`
	// Identifier is the platform error identifier the kind was derived from.
	Identifier string `json:"identifier,omitempty"`
	// HostBlocked is set when the host itself refused to offer capture
	// (insecure context, unsupported API, missing capture tooling).
	HostBlocked bool  `json:"host_blocked,omitempty"`
	Err         error `json:"-"`
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	if e.Identifier != "" {
		return string(e.Kind) + ": " + e.Identifier
	}
	return string(e.Kind)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// NamedError is a platform error that carries a DOMException-style name,
// such as "NotAllowedError".
type NamedError struct {
	ErrName string
	Message string
}

// NewNamedError returns a platform error with the given identifier.
func NewNamedError(name, message string) *NamedError {
	return &NamedError{ErrName: name, Message: message}
}

// Name returns the platform identifier.
func (e *NamedError) Name() string { return e.ErrName }

func (e *NamedError) Error() string {
	if e.Message == "" {
		return e.ErrName
	}
	return e.ErrName + ": " + e.Message
}

// named is implemented by errors that expose a platform identifier.
type named interface {
	Name() string
}

// identifierKinds maps exact platform identifiers (lowercased) to kinds.
var identifierKinds = map[string]ErrorKind{
	"notallowederror":             PermissionDenied,
	"permissiondeniederror":       PermissionDenied,
	"permissiondismissederror":    PermissionDenied,
	"notfounderror":               DeviceAbsent,
	"devicesnotfounderror":        DeviceAbsent,
	"overconstrainederror":        DeviceAbsent,
	"constraintnotsatisfiederror": DeviceAbsent,
	"notreadableerror":            DeviceBusy,
	"trackstarterror":             DeviceBusy,
	"securityerror":               Unknown,
	"notsupportederror":           Unknown,
	"typeerror":                   Unknown,
	"aborterror":                  Unknown,
}

// hostBlockedIdentifiers are identifiers for which the host refused to offer
// capture at all.
var hostBlockedIdentifiers = map[string]bool{
	"securityerror":     true,
	"notsupportederror": true,
	"typeerror":         true,
}

// keywordRule matches a lowercased message fragment to a kind.
type keywordRule struct {
	keyword     string
	kind        ErrorKind
	hostBlocked bool
}

// keywordRules are evaluated in order; the first match wins.
var keywordRules = []keywordRule{
	{keyword: "permission denied", kind: PermissionDenied},
	{keyword: "operation not permitted", kind: PermissionDenied},
	{keyword: "not allowed", kind: PermissionDenied},
	{keyword: "device or resource busy", kind: DeviceBusy},
	{keyword: "resource busy", kind: DeviceBusy},
	{keyword: "resource temporarily unavailable", kind: DeviceBusy},
	{keyword: "could not start", kind: DeviceBusy},
	{keyword: "no such file or directory", kind: DeviceAbsent},
	{keyword: "no such device", kind: DeviceAbsent},
	{keyword: "failed to find the best driver", kind: DeviceAbsent},
	// FFmpeg avfoundation and dshow, and ALSA without a card.
	{keyword: "device not found", kind: DeviceAbsent},
	{keyword: "could not find audio", kind: DeviceAbsent},
	{keyword: "could not find video", kind: DeviceAbsent},
	{keyword: "no soundcards found", kind: DeviceAbsent},
	{keyword: "insecure context", kind: Unknown, hostBlocked: true},
	{keyword: "not supported", kind: Unknown, hostBlocked: true},
}

// ClassifyIdentifier maps a platform error identifier to a CaptureError.
// The lookup is case-insensitive and total: unrecognized or empty
// identifiers yield Unknown.
func ClassifyIdentifier(id string) *CaptureError {
	key := strings.ToLower(strings.TrimSpace(id))
	ce := &CaptureError{Kind: Unknown, Identifier: id}
	if key == "" {
		return ce
	}

	if kind, ok := identifierKinds[key]; ok {
		ce.Kind = kind
		ce.HostBlocked = hostBlockedIdentifiers[key]
		return ce
	}

	for _, rule := range keywordRules {
		if strings.Contains(key, rule.keyword) {
			ce.Kind = rule.kind
			ce.HostBlocked = rule.hostBlocked
			return ce
		}
	}
	return ce
}

// ClassifyError maps any acquisition failure to a CaptureError. It never
// returns nil; a nil err classifies as Unknown.
//
// Classification order: an already classified error, a platform identifier
// on the error chain, sentinel and errno values, then message keywords.
func ClassifyError(err error) *CaptureError {
	if err == nil {
		return &CaptureError{Kind: Unknown}
	}

	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}

	var n named
	if errors.As(err, &n) && n.Name() != "" {
		ce = ClassifyIdentifier(n.Name())
		ce.Err = err
		return ce
	}

	if kind, blocked, ok := classifySentinel(err); ok {
		return &CaptureError{Kind: kind, HostBlocked: blocked, Identifier: err.Error(), Err: err}
	}

	ce = ClassifyIdentifier(err.Error())
	ce.Err = err
	return ce
}

// classifySentinel matches well-known error values on the chain.
func classifySentinel(err error) (kind ErrorKind, hostBlocked, ok bool) {
	switch {
	case errors.Is(err, ErrCaptureUnsupported):
		return Unknown, true, true
	case errors.Is(err, ErrPermission), errors.Is(err, fs.ErrPermission):
		return PermissionDenied, false, true
	case errors.Is(err, ErrNoDevice), errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV):
		return DeviceAbsent, false, true
	case errors.Is(err, ErrDeviceBusy), errors.Is(err, syscall.EBUSY):
		return DeviceBusy, false, true
	}
	return "", false, false
}
