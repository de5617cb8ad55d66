package util

import "os/exec"

// ResolveFFmpegPath locates the FFmpeg binary the exec audio backend runs on
// macOS and Windows. A configured path wins but must be executable; without
// one, PATH is searched. It returns "" when FFmpeg is unavailable, which the
// backend later reports as unsupported capture.
func ResolveFFmpegPath(configured string) string {
	name := "ffmpeg"
	if configured != "" {
		name = configured
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	if configured != "" {
		return configured
	}
	return path
}
