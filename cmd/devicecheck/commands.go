package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/checker"
	"github.com/oszuidwest/zwfm-devicecheck/internal/config"
	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
	"github.com/oszuidwest/zwfm-devicecheck/internal/meeting"
	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
	"github.com/oszuidwest/zwfm-devicecheck/internal/util"
)

// backendFactory builds capture backends from configuration.
type backendFactory func(config.Snapshot) (map[capture.Kind]capture.Backend, error)

// options holds the global flags.
type options struct {
	configPath string
	listen     time.Duration
	verbose    bool
}

// result is what a mic or webcam check prints.
type result struct {
	Diagnosis diagnosis.Diagnosis `json:"diagnosis"`
	Guidance  diagnosis.Guidance  `json:"guidance"`
	Summary   string              `json:"summary,omitempty"`
}

func newRootCommand(backends backendFactory) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "devicecheck",
		Short:         "Check that your microphone and webcam work",
		Long:          `Runs the microphone, webcam or meeting check against the local hardware and prints the diagnosis with remediation steps as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: built-in defaults)")
	root.PersistentFlags().DurationVarP(&opts.listen, "listen", "l", 0, "How long to listen to the microphone (default: evaluation window + 500ms)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log capture details to stderr")

	root.AddCommand(micCommand(opts, backends))
	root.AddCommand(webcamCommand(opts, backends))
	root.AddCommand(meetingCommand(opts, backends))
	root.AddCommand(devicesCommand(opts, backends))

	return root
}

// loadSnapshot reads the config file when one is given. Without -c the
// built-in defaults apply and nothing is written to disk.
func loadSnapshot(opts *options) (config.Snapshot, error) {
	cfg := config.New(opts.configPath)
	if opts.configPath != "" {
		if err := cfg.Load(); err != nil {
			return config.Snapshot{}, err
		}
	}
	return cfg.Snapshot(), nil
}

func micCommand(opts *options, backends backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "mic",
		Short: "Check the microphone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, bs, err := setup(opts, backends)
			if err != nil {
				return err
			}
			mic := checker.NewMic(bs[capture.KindAudio], snap.MicOptions())
			defer mic.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), types.AcquireTimeout)
			defer cancel()
			d := runMic(ctx, mic, listenFor(opts, snap))

			res := result{Diagnosis: d, Guidance: d.Guidance()}
			if reading := mic.Level(); reading.NoSignal {
				res.Summary = "no signal for " + util.FormatDuration(reading.SilenceMs)
			}
			return report(cmd.OutOrStdout(), res, d.OK())
		},
	}
}

func webcamCommand(opts *options, backends backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "webcam",
		Short: "Check the webcam",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, bs, err := setup(opts, backends)
			if err != nil {
				return err
			}
			webcam := checker.NewWebcam(bs[capture.KindVideo], snap.WebcamOptions())
			defer webcam.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), types.AcquireTimeout)
			defer cancel()
			d := runWebcam(ctx, webcam)

			res := result{Diagnosis: d, Guidance: d.Guidance()}
			if d.OK() {
				res.Summary = d.Resolution.String()
			}
			return report(cmd.OutOrStdout(), res, d.OK())
		},
	}
}

func meetingCommand(opts *options, backends backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "meeting",
		Short: "Check microphone and webcam together",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, bs, err := setup(opts, backends)
			if err != nil {
				return err
			}
			mic := checker.NewMic(bs[capture.KindAudio], snap.MicOptions())
			defer mic.Close()
			webcam := checker.NewWebcam(bs[capture.KindVideo], snap.WebcamOptions())
			defer webcam.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), types.AcquireTimeout)
			defer cancel()
			if err := checker.StartAll(ctx, mic, webcam); err != nil {
				slog.Info("acquisition failed", "error", err)
			}

			var micDiag, webcamDiag diagnosis.Diagnosis
			done := make(chan struct{})
			go func() {
				defer close(done)
				webcamDiag = runWebcam(ctx, webcam)
			}()
			micDiag = runMic(ctx, mic, listenFor(opts, snap))
			<-done

			summary := meeting.Summarize(micDiag, webcamDiag)
			return report(cmd.OutOrStdout(), summary, summary.Pass)
		},
	}
}

func devicesCommand(opts *options, backends backendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio and video input devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, bs, err := setup(opts, backends)
			if err != nil {
				return err
			}
			out := map[capture.Kind][]capture.Device{}
			for _, kind := range []capture.Kind{capture.KindAudio, capture.KindVideo} {
				devices, err := bs[kind].Devices(kind)
				if err != nil {
					slog.Warn("failed to list devices", "kind", kind, "error", err)
				}
				if devices == nil {
					devices = []capture.Device{}
				}
				out[kind] = devices
			}
			return report(cmd.OutOrStdout(), out, true)
		},
	}
}

func setup(opts *options, backends backendFactory) (config.Snapshot, map[capture.Kind]capture.Backend, error) {
	snap, err := loadSnapshot(opts)
	if err != nil {
		return config.Snapshot{}, nil, err
	}
	bs, err := backends(snap)
	if err != nil {
		return config.Snapshot{}, nil, err
	}
	return snap, bs, nil
}

func listenFor(opts *options, snap config.Snapshot) time.Duration {
	if opts.listen > 0 {
		return opts.listen
	}
	return time.Duration(snap.EvaluationWindowMs)*time.Millisecond + 500*time.Millisecond
}

// runMic starts the microphone if needed and listens long enough for the
// silence window to conclude.
func runMic(ctx context.Context, mic *checker.Mic, listen time.Duration) diagnosis.Diagnosis {
	if mic.State().Session == nil && mic.State().Err == nil {
		if err := mic.Start(ctx); err != nil {
			return mic.Diagnosis()
		}
	}
	if mic.State().Session == nil {
		return mic.Diagnosis()
	}

	select {
	case <-time.After(listen):
	case <-ctx.Done():
	}
	return mic.Diagnosis()
}

// runWebcam starts the webcam if needed and waits until it plays or the
// playback timeout passes.
func runWebcam(ctx context.Context, webcam *checker.Webcam) diagnosis.Diagnosis {
	if webcam.State().Session == nil && webcam.State().Err == nil {
		if err := webcam.Start(ctx); err != nil {
			return webcam.Diagnosis()
		}
	}
	if webcam.State().Session == nil {
		return webcam.Diagnosis()
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p := webcam.Playback(); p.Playing || p.TimedOut {
			return webcam.Diagnosis()
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return webcam.Diagnosis()
		}
	}
}

func report(w io.Writer, v any, ok bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if !ok {
		return errNotOK
	}
	return nil
}
