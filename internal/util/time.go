package util

import (
	"fmt"
	"time"
)

// FormatHumanTime renders the RFC 3339 build timestamp in local time for the
// page footer. Unparseable input is returned as is.
func FormatHumanTime(rfc3339 string) string {
	if rfc3339 == "" || rfc3339 == "unknown" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format("2 Jan 2006 15:04 MST")
}

// FormatDuration renders a silence duration in milliseconds the way the CLI
// prints it: "3s", "2m 34s" or "1h 23m".
func FormatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
