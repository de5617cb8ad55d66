package diagnosis

// Guidance is the remediation block shown for one status.
type Guidance struct {
	Title string   `json:"title"`
	Steps []string `json:"steps,omitempty"`
	// Retry is the label of the single retry action, empty when none.
	Retry string `json:"retry,omitempty"`
}

const retryLabel = "Try again"

type guidanceKey struct {
	device Device
	status Status
}

var guidance = map[guidanceKey]Guidance{
	{DeviceMicrophone, StatusOK}: {
		Title: "Your microphone works",
	},
	{DeviceMicrophone, StatusPermissionDenied}: {
		Title: "Microphone access was refused",
		Steps: []string{
			"Allow microphone access for this application in your system privacy settings.",
			"On Linux, make sure your user is in the audio group.",
		},
		Retry: retryLabel,
	},
	{DeviceMicrophone, StatusNoDevice}: {
		Title: "No microphone was found",
		Steps: []string{
			"Connect a microphone or headset.",
			"Check that the selected input device still exists.",
		},
		Retry: retryLabel,
	},
	{DeviceMicrophone, StatusInUseElsewhere}: {
		Title: "Your microphone is in use by another application",
		Steps: []string{
			"Close other applications that record audio, such as meeting or recording software.",
			"Unplug and reconnect the microphone if the problem persists.",
		},
		Retry: retryLabel,
	},
	{DeviceMicrophone, StatusInputMuted}: {
		Title: "Your microphone is muted",
		Steps: []string{
			"Unmute the input in this tool.",
			"Check the mute switch on your headset or microphone.",
		},
		Retry: retryLabel,
	},
	{DeviceMicrophone, StatusNoAudioDetected}: {
		Title: "No sound is coming from your microphone",
		Steps: []string{
			"Speak into the microphone and watch the level meter.",
			"Raise the input volume in your system sound settings.",
			"Select a different input device if you have more than one.",
		},
		Retry: retryLabel,
	},
	{DeviceMicrophone, StatusBlockedByBrowser}: {
		Title: "Microphone capture is not available on this system",
		Steps: []string{
			"Install the audio capture tools (arecord or FFmpeg) or switch the audio backend.",
			"Check that this application is allowed to capture audio.",
		},
		Retry: retryLabel,
	},
	{DeviceMicrophone, StatusUnknownError}: {
		Title: "We could not check your microphone",
		Steps: []string{
			"Reconnect the microphone and try again.",
			"Restart this application if the problem persists.",
		},
		Retry: retryLabel,
	},
	{DeviceWebcam, StatusOK}: {
		Title: "Your webcam works",
	},
	{DeviceWebcam, StatusPermissionDenied}: {
		Title: "Camera access was refused",
		Steps: []string{
			"Allow camera access for this application in your system privacy settings.",
			"On Linux, make sure your user is in the video group.",
		},
		Retry: retryLabel,
	},
	{DeviceWebcam, StatusNoDevice}: {
		Title: "No webcam was found",
		Steps: []string{
			"Connect a webcam.",
			"Check that the selected camera still exists.",
		},
		Retry: retryLabel,
	},
	{DeviceWebcam, StatusInUseElsewhere}: {
		Title: "Your webcam is in use by another application",
		Steps: []string{
			"Close other applications that use the camera, such as meeting software.",
			"Unplug and reconnect the webcam if the problem persists.",
		},
		Retry: retryLabel,
	},
	{DeviceWebcam, StatusBlockedByBrowser}: {
		Title: "Camera capture is not available on this system",
		Steps: []string{
			"Check that a camera driver is installed and supported.",
			"Check that this application is allowed to use the camera.",
		},
		Retry: retryLabel,
	},
	{DeviceWebcam, StatusUnknownError}: {
		Title: "We could not get a picture from your webcam",
		Steps: []string{
			"Make sure the lens cover or privacy shutter is open.",
			"Reconnect the webcam and try again.",
		},
		Retry: retryLabel,
	},
}

// GuidanceFor returns the remediation block for a device and status.
// Statuses without a dedicated block get the device's generic guidance.
func GuidanceFor(device Device, status Status) Guidance {
	if g, ok := guidance[guidanceKey{device, status}]; ok {
		return g
	}
	return guidance[guidanceKey{device, StatusUnknownError}]
}

// Guidance returns the remediation block for d.
func (d Diagnosis) Guidance() Guidance {
	return GuidanceFor(d.Device, d.Status)
}
