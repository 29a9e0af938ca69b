package media

import (
	"bufio"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// readChunkSize is the unit the pump reads from the subprocess pipe.
	readChunkSize = 4096
	// stopGrace is how long Stop waits after SIGTERM and again after
	// SIGKILL before giving up on the process.
	stopGrace = 2 * time.Second
)

// Process wraps one running codec subprocess. A pump goroutine drains
// the output pipe into a channel so Read can offer a bounded wait
// instead of blocking indefinitely.
type Process struct {
	tag    string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.SugaredLogger

	out       chan []byte
	pollBound time.Duration

	readMu sync.Mutex
	rem    []byte

	done     chan struct{}
	exited   atomic.Bool
	stopOnce sync.Once
}

// startProcess launches cmd and wires the requested pipes. The tag
// shows up in log lines for this subprocess.
func startProcess(tag string, cmd *exec.Cmd, wantStdout, wantStdin bool, pollBound time.Duration, logger *zap.SugaredLogger) (*Process, error) {
	p := &Process{
		tag:       tag,
		cmd:       cmd,
		logger:    logger,
		pollBound: pollBound,
		done:      make(chan struct{}),
	}

	var stdout io.ReadCloser
	var err error
	if wantStdout {
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return nil, err
		}
	}
	if wantStdin {
		if p.stdin, err = cmd.StdinPipe(); err != nil {
			return nil, err
		}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	logger.Infow("subprocess started", "tag", tag, "pid", cmd.Process.Pid)

	go p.monitorStderr(stderr)
	go func() {
		_ = cmd.Wait()
		p.exited.Store(true)
		close(p.done)
		logger.Infow("subprocess exited", "tag", tag, "pid", cmd.Process.Pid)
	}()

	if wantStdout {
		p.out = make(chan []byte, 64)
		go p.pump(stdout)
	}
	return p, nil
}

func (p *Process) pump(r io.Reader) {
	defer close(p.out)
	for {
		buf := make([]byte, readChunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			p.out <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

func (p *Process) monitorStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			p.logger.Warnw("subprocess stderr", "tag", p.tag, "pid", p.PID(), "line", line)
		}
	}
}

// PID returns the subprocess pid.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Alive reports whether the subprocess is still running.
func (p *Process) Alive() bool {
	return !p.exited.Load()
}

// Read copies the next output chunk into b, waiting at most the poll
// bound. A zero count with nil error means no data arrived within the
// bound; io.EOF means the pipe has ended.
func (p *Process) Read(b []byte) (int, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	if len(p.rem) > 0 {
		n := copy(b, p.rem)
		p.rem = p.rem[n:]
		return n, nil
	}

	select {
	case chunk, ok := <-p.out:
		if !ok {
			return 0, io.EOF
		}
		n := copy(b, chunk)
		p.rem = chunk[n:]
		return n, nil
	case <-time.After(p.pollBound):
		return 0, nil
	}
}

// Write delivers b to the subprocess input pipe. The pipe is
// unbuffered so data reaches the subprocess immediately.
func (p *Process) Write(b []byte) error {
	if p.stdin == nil {
		return io.ErrClosedPipe
	}
	_, err := p.stdin.Write(b)
	return err
}

// Stop terminates the subprocess: input pipe closed, SIGTERM, then
// SIGKILL after a grace period. Stopping twice is a no-op.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		if p.stdin != nil {
			_ = p.stdin.Close()
		}
		if p.exited.Load() {
			return
		}

		p.logger.Infow("stopping subprocess", "tag", p.tag, "pid", p.PID())
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.done:
			return
		case <-time.After(stopGrace):
		}

		p.logger.Warnw("subprocess ignored SIGTERM, killing", "tag", p.tag, "pid", p.PID())
		_ = p.cmd.Process.Kill()
		select {
		case <-p.done:
		case <-time.After(stopGrace):
			p.logger.Errorw("subprocess did not die after SIGKILL", "tag", p.tag, "pid", p.PID())
		}
	})
}
