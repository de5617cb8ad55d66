package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "example.com", true},
		{"localhost", "http://localhost:8080", "127.0.0.1:8080", true},
		{"loopback v6", "http://[::1]:8080", "[::1]:8080", true},
		{"same host", "http://checker.lan", "checker.lan:8080", true},
		{"private range", "http://192.168.1.20", "checker.lan", true},
		{"foreign", "https://evil.example", "checker.lan", false},
		{"unparseable", "://bad", "checker.lan", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkOrigin(r))
		})
	}
}
