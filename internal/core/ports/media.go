package ports

// MediaProcess wraps one running codec subprocess and its byte pipe.
type MediaProcess interface {
	PID() int

	// Alive reports whether the subprocess is still running.
	Alive() bool

	// Read copies the next output chunk into p, waiting at most the
	// handle's poll bound. n == 0 with a nil error means no data was
	// available within the bound; io.EOF means the pipe is drained and
	// the process has exited.
	Read(p []byte) (n int, err error)

	// Write delivers p to the subprocess input pipe immediately.
	Write(p []byte) error

	// Stop terminates the subprocess, gracefully first and forcefully
	// after a grace period. Stopping twice is a no-op.
	Stop()
}

// EncoderStarter launches the shared encoder subprocess.
type EncoderStarter func() (MediaProcess, error)

// DecoderStarter launches a decoder subprocess. The title is shown on
// the playback window.
type DecoderStarter func(title string) (MediaProcess, error)
