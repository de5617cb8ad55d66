// Package main provides a device check daemon that tells a user whether
// their microphone and webcam work, and what to do when they do not.
//
// Usage:
//
//	devicecheckd [-config path/to/config.json]
//
// If -config is not specified, the daemon looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/checker"
	"github.com/oszuidwest/zwfm-devicecheck/internal/config"
	"github.com/oszuidwest/zwfm-devicecheck/internal/mediadev"
	"github.com/oszuidwest/zwfm-devicecheck/internal/server"
	"github.com/oszuidwest/zwfm-devicecheck/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()

	// FFmpeg is only needed by the exec audio backend outside Linux.
	ffmpegPath := util.ResolveFFmpegPath(snap.FFmpegPath)
	if ffmpegPath == "" {
		slog.Warn("FFmpeg not found", "configured_path", snap.FFmpegPath)
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}

	audioBackend, err := mediadev.AudioBackend(snap.AudioBackend, ffmpegPath)
	if err != nil {
		slog.Error("failed to select audio backend", "error", err)
		os.Exit(1)
	}
	backends := map[capture.Kind]capture.Backend{
		capture.KindAudio: audioBackend,
		capture.KindVideo: mediadev.New(),
	}
	slog.Info("capture backends ready", "audio", snap.AudioBackend)

	mic := checker.NewMic(backends[capture.KindAudio], snap.MicOptions())
	webcam := checker.NewWebcam(backends[capture.KindVideo], snap.WebcamOptions())

	// Cancelled on shutdown so pending acquisitions give up.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	commands := server.NewCommandHandler(ctx, cfg, mic, webcam, backends)
	version := NewReleaseChecker(snap.UpdateRepo)
	version.Start(ctx)
	srv := NewServer(cfg, mic, webcam, backends, commands, version)

	// Start web server.
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")
	cancel()

	version.Stop()

	// Shut down HTTP server.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Release hardware, including sessions still being acquired.
	mic.Close()
	webcam.Close()

	slog.Info("shutdown complete")
}
