package media

import (
	"fmt"
	"os/exec"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"

	"go.uber.org/zap"
)

const decoderBinary = "ffplay"

// decoderArgs builds the low-latency playback command line. Input is
// read from stdin.
func decoderArgs(windowTitle string) []string {
	return []string{
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-probesize", "32",
		"-sync", "ext",
		"-window_title", windowTitle,
		"-",
	}
}

// NewDecoderStarter returns a starter that launches the renderer for a
// stream from the named producer.
func NewDecoderStarter(logger *zap.SugaredLogger) ports.DecoderStarter {
	return func(serverName string) (ports.MediaProcess, error) {
		title := fmt.Sprintf("AdStream - Streaming from %s", serverName)
		cmd := exec.Command(decoderBinary, decoderArgs(title)...)
		p, err := startProcess("decoder", cmd, false, true, time.Millisecond, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrProcessStart, err)
		}
		return p, nil
	}
}
