// Command devicecheck runs a one-shot microphone, webcam or meeting check
// against the local hardware and prints the result as JSON. It exits with
// status 1 when a check does not pass.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/oszuidwest/zwfm-devicecheck/internal/capture"
	"github.com/oszuidwest/zwfm-devicecheck/internal/config"
	"github.com/oszuidwest/zwfm-devicecheck/internal/mediadev"
	"github.com/oszuidwest/zwfm-devicecheck/internal/util"
)

// errNotOK signals a completed check that did not pass.
var errNotOK = errors.New("check did not pass")

func main() {
	root := newRootCommand(hostBackends)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errNotOK) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// hostBackends selects the capture backends configured for this host.
func hostBackends(snap config.Snapshot) (map[capture.Kind]capture.Backend, error) {
	audio, err := mediadev.AudioBackend(snap.AudioBackend, util.ResolveFFmpegPath(snap.FFmpegPath))
	if err != nil {
		return nil, err
	}
	return map[capture.Kind]capture.Backend{
		capture.KindAudio: audio,
		capture.KindVideo: mediadev.New(),
	}, nil
}
