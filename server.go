package main

import (
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/checker"
	"github.com/oszuidwest/zwfm-devicecheck/internal/config"
	"github.com/oszuidwest/zwfm-devicecheck/internal/meeting"
	"github.com/oszuidwest/zwfm-devicecheck/internal/server"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
)

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))
var faviconTmpl = template.Must(template.New("favicon").Parse(faviconSVG))

type indexData struct {
	Version    string
	Year       int
	Title      string
	PrimaryCSS template.CSS
}

// Server is an HTTP server that provides the web interface for the device check.
type Server struct {
	config   *config.Config
	mic      *checker.Mic
	webcam   *checker.Webcam
	backends map[capture.Kind]capture.Backend
	commands *server.CommandHandler
	version  *ReleaseChecker
}

// NewServer returns a new Server for the given checks.
func NewServer(cfg *config.Config, mic *checker.Mic, webcam *checker.Webcam, backends map[capture.Kind]capture.Backend, commands *server.CommandHandler, version *ReleaseChecker) *Server {
	return &Server{
		config:   cfg,
		mic:      mic,
		webcam:   webcam,
		backends: backends,
		commands: commands,
		version:  version,
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection. The send channel
	// is never closed: async command results may still arrive after the
	// client is gone and are dropped by trySend.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWebSocketWriter(conn, send, done)
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any, done <-chan struct{}) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for {
		select {
		case msg := <-send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop pushes status, levels and diagnosis changes until
// the client disconnects.
func (s *Server) runWebSocketEventLoop(send chan<- any, done <-chan struct{}, statusUpdate <-chan struct{}) {
	levelsTicker := time.NewTicker(100 * time.Millisecond)  // 10 fps for the level meter
	statusTicker := time.NewTicker(3000 * time.Millisecond) // Status updates every 3s
	defer levelsTicker.Stop()
	defer statusTicker.Stop()

	micDiag, cancelMic := s.mic.Subscribe()
	defer cancelMic()
	webcamDiag, cancelWebcam := s.webcam.Subscribe()
	defer cancelWebcam()

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	// Send initial status
	if !trySend(s.buildWSStatus()) {
		return
	}

	for {
		var msg any
		select {
		case <-done:
			return
		case d := <-micDiag:
			msg = server.NewDiagnosisMessage(d)
		case d := <-webcamDiag:
			msg = server.NewDiagnosisMessage(d)
		case <-statusUpdate:
			msg = s.buildWSStatus()
		case <-statusTicker.C:
			msg = s.buildWSStatus()
		case <-levelsTicker.C:
			levels := s.mic.Level()
			if !levels.Live {
				continue
			}
			msg = server.WSLevelsResponse{Type: "levels", Levels: levels}
		}
		if !trySend(msg) {
			return
		}
	}
}

// diagnosisSnapshot is the combined state of both checks.
type diagnosisSnapshot struct {
	Mic     server.ToolStatus `json:"mic"`
	Webcam  server.ToolStatus `json:"webcam"`
	Meeting meeting.Summary   `json:"meeting"`
}

func (s *Server) snapshot() diagnosisSnapshot {
	micDiag, webcamDiag := s.mic.Diagnosis(), s.webcam.Diagnosis()
	return diagnosisSnapshot{
		Mic:     server.NewToolStatus(micDiag, s.mic.State()),
		Webcam:  server.NewToolStatus(webcamDiag, s.webcam.State()),
		Meeting: s.commands.Meeting(),
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() server.WSStatusResponse {
	cfg := s.config.Snapshot()
	snap := s.snapshot()

	return server.WSStatusResponse{
		Type:    "status",
		Mic:     snap.Mic,
		Webcam:  snap.Webcam,
		Meeting: snap.Meeting,
		Settings: types.WSSettings{
			AudioBackend:       cfg.AudioBackend,
			AudioInput:         cfg.AudioInput,
			SilenceThreshold:   cfg.SilenceThreshold,
			EvaluationWindowMs: cfg.EvaluationWindowMs,
			VideoInput:         cfg.VideoInput,
			PlaybackTimeoutMs:  cfg.PlaybackTimeoutMs,
			Platform:           runtime.GOOS,
		},
		Version: s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/favicon.svg", s.handleFavicon)
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/api/diagnosis", s.handleAPIDiagnosis)
	mux.HandleFunc("/api/guidance", s.handleAPIGuidance)
	mux.HandleFunc("/api/config", s.handleAPIConfig)
	mux.HandleFunc("/api/devices", s.handleAPIDevices)

	if s.config.Snapshot().MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/", s.handleStatic)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handleFavicon serves the favicon with the configured brand color.
func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	cfg := s.config.Snapshot()
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := faviconTmpl.Execute(w, struct{ Color string }{Color: cfg.ColorLight}); err != nil {
		slog.Error("failed to render favicon", "error", err)
	}
}

// serveStaticFile serves a static file by path and reports whether it was found.
func serveStaticFile(w http.ResponseWriter, path string) bool {
	file, ok := staticFiles[path]
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", file.contentType)
	if _, err := w.Write([]byte(file.content)); err != nil {
		slog.Error("failed to write static file", "file", file.name, "error", err)
	}
	return true
}

// staticFile is an embedded static file with content type and data.
type staticFile struct {
	contentType string
	content     string
	name        string
}

// staticFiles is a map from URL paths to static file definitions.
var staticFiles = map[string]staticFile{
	"/style.css": {
		contentType: "text/css",
		content:     styleCSS,
		name:        "style.css",
	},
	"/app.js": {
		contentType: "application/javascript",
		content:     appJS,
		name:        "app.js",
	},
	// favicon.svg is served dynamically via handleFavicon
}

// handleStatic handles requests for embedded static web interface files.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	// Serve index.html with dynamic placeholders.
	if path == "/index.html" {
		cfg := s.config.Snapshot()
		w.Header().Set("Content-Type", "text/html")
		if err := indexTmpl.Execute(w, indexData{
			Version:    Version,
			Year:       time.Now().Year(),
			Title:      cfg.Title,
			PrimaryCSS: pageTheme(cfg.ColorLight, cfg.ColorDark),
		}); err != nil {
			slog.Error("failed to write index.html", "error", err)
		}
		return
	}

	if serveStaticFile(w, path) {
		return
	}

	http.NotFound(w, r)
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	cfg := s.config.Snapshot()
	addr := net.JoinHostPort(cfg.WebHost, strconv.Itoa(cfg.WebPort))
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
