package media

import (
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"

	"go.uber.org/zap"
)

const encoderBinary = "ffmpeg"

// encoderSettle covers portal interaction and ffmpeg initialization
// before the first liveness verdict.
const encoderSettle = 2500 * time.Millisecond

// encoderArgs builds the capture-and-encode command line for the
// configured stream settings. Output is an MPEG-TS byte stream on
// stdout.
func encoderArgs(s domain.StreamSettings) []string {
	return []string{
		"-loglevel", "error",
		"-f", "pipewire",
		"-framerate", strconv.Itoa(s.FPS),
		"-i", "portal",
		"-vf", fmt.Sprintf("scale=%d:%d", s.Width, s.Height),
		"-c:v", "libx264",
		"-preset", s.Preset,
		"-tune", "zerolatency",
		"-crf", strconv.Itoa(s.CRF),
		"-g", strconv.Itoa(s.KeyframeInterval()),
		"-pix_fmt", "yuv420p",
		"-f", "mpegts",
		"-",
	}
}

// NewEncoderStarter returns a starter that launches the screen-capture
// encoder for the given settings. The returned handle is shared by all
// sessions.
func NewEncoderStarter(settings domain.StreamSettings, logger *zap.SugaredLogger) ports.EncoderStarter {
	return func() (ports.MediaProcess, error) {
		cmd := exec.Command(encoderBinary, encoderArgs(settings)...)
		logger.Infow("launching encoder",
			"res", settings.Resolution(), "fps", settings.FPS,
			"crf", settings.CRF, "preset", settings.Preset)

		p, err := startProcess("encoder", cmd, true, false, settings.PollInterval, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrProcessStart, err)
		}

		// A capture/permission problem shows up as an immediate exit.
		time.Sleep(encoderSettle)
		if !p.Alive() {
			p.Stop()
			return nil, fmt.Errorf("%w: encoder terminated right after start, check capture permissions", domain.ErrProcessStart)
		}
		return p, nil
	}
}

// CheckBinaries verifies that the required external programs are on
// PATH. A missing binary is a startup-time configuration fault.
func CheckBinaries(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("required binary %q not found in PATH: %w", name, err)
		}
	}
	return nil
}
