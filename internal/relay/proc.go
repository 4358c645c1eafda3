package relay

import (
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type proc struct {
	pid     int
	done    chan struct{}
	exitErr error
	stderr  *tailBuffer

	log *zap.Logger
}

func startProc(bin string, args []string, log *zap.Logger) (*proc, error) {
	cmd := exec.Command(bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &proc{
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
		stderr: newTailBuffer(2048),
		log:    log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	// drain both output pipes for the lifetime of the process, so a
	// chatty child never blocks on a full pipe buffer. stdout is
	// discarded, the stderr tail is kept for exit logging.
	var drained sync.WaitGroup
	drained.Add(2)

	go func() {
		defer drained.Done()

		if _, err := io.Copy(io.Discard, stdout); err != nil && err != io.EOF {
			p.log.Debug("stdout drain stopped", zap.Error(err))
		}
	}()

	go func() {
		defer drained.Done()

		if _, err := io.Copy(p.stderr, stderr); err != nil && err != io.EOF {
			p.log.Debug("stderr drain stopped", zap.Error(err))
		}
	}()

	go func() {
		// block until the process exits
		err := cmd.Wait()

		// wait for the pipes to be fully drained
		drained.Wait()

		p.exitErr = err

		close(p.done)
	}()

	return p, nil
}

// Alive reports whether the process is still running. Never blocks.
func (p *proc) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate asks the process to exit with SIGTERM.
// It returns immediately, without waiting for the process to stop.
func (p *proc) Terminate() {
	p.signal(syscall.SIGTERM)
}

// Kill force-terminates the process with SIGKILL.
func (p *proc) Kill() {
	p.signal(syscall.SIGKILL)
}

// Wait blocks until the process exits or the timeout elapses.
// A zero timeout waits indefinitely.
func (p *proc) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-p.done
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// ExitErr returns the exit error recorded by Wait. Only meaningful
// once the process is no longer alive.
func (p *proc) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

// StderrTail returns the most recent stderr output of the process.
func (p *proc) StderrTail() string {
	return p.stderr.String()
}

func (p *proc) signal(sig syscall.Signal) {
	log := p.log.With(zap.Stringer("signal", sig))

	log.Debug("sending signal")

	// best effort, ignore delivery races with process exit
	if err := p.sendSignal(sig); err != nil {
		log.Debug("signal failed", zap.Error(err))
	}
}

func (p *proc) sendSignal(sig syscall.Signal) error {
	if pgid, err := syscall.Getpgid(p.pid); err == nil {
		// Negative pid sends signal to all in process group
		return syscall.Kill(-pgid, sig)
	}

	return syscall.Kill(p.pid, sig)
}

// tailBuffer is an io.Writer that keeps the last max bytes written.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, b...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}

	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.buf)
}
