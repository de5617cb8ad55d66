// Package util holds small helpers shared by the capture backends, the
// daemon and the CLI.
package util

import (
	"fmt"
	"strings"
)

// maxErrorLineLength caps a stderr line quoted in an error.
const maxErrorLineLength = 200

// WrapError prefixes err with the operation that failed. It returns nil for
// a nil err.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// ExtractLastError returns the last non-blank line of a capture tool's
// stderr. arecord and FFmpeg both print the reason they gave up last, and
// that line is what the error classifier matches on.
func ExtractLastError(stderr string) string {
	stderr = strings.TrimRight(stderr, " \t\r\n")
	line := strings.TrimSpace(stderr[strings.LastIndexByte(stderr, '\n')+1:])
	if len(line) > maxErrorLineLength {
		return line[:maxErrorLineLength] + "..."
	}
	return line
}
