package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streamfleet/relayd/internal/stream"
)

var (
	ErrStopTimeout    = errors.New("stop timeout")
	ErrAlreadyRunning = errors.New("relay already running")
)

const (
	DefaultMaxRestarts     = 5
	DefaultRestartInterval = 60 * time.Second
	DefaultStopTimeout     = 5 * time.Second
)

// Params configures a relay handle.
type Params struct {
	// Bin is the name or path of the ffmpeg binary.
	Bin string

	// ServerBase is the RTSP server base URL streams publish to.
	ServerBase string

	// MaxRestarts bounds the number of automatic restart attempts.
	MaxRestarts int

	// RestartInterval is the minimum spacing between restart attempts.
	// It is carried as part of the restart policy but not applied:
	// attempts are paced by the supervisor's poll interval alone.
	RestartInterval time.Duration

	// StopTimeout is the grace period between SIGTERM and SIGKILL.
	StopTimeout time.Duration

	// Log is the logger to use for the handle.
	Log *zap.Logger
}

// Handle owns the lifecycle of a single external relay process: spawn,
// liveness, graceful-then-forced stop, and restart bookkeeping.
type Handle struct {
	decl stream.Declaration
	bin  string
	args []string

	maxRestarts     int
	restartInterval time.Duration
	stopTimeout     time.Duration

	mu        sync.Mutex
	proc      *proc
	restarts  int
	exhausted bool

	log *zap.Logger
}

// NewHandle builds the relay command for the declaration up front, so
// declarations whose source type has no command template are rejected
// here and never get a handle registered for them.
func NewHandle(decl stream.Declaration, params Params) (*Handle, error) {
	args, err := stream.Command(decl, params.ServerBase)
	if err != nil {
		return nil, err
	}

	if params.Bin == "" {
		params.Bin = "ffmpeg"
	}

	if params.MaxRestarts <= 0 {
		params.MaxRestarts = DefaultMaxRestarts
	}

	if params.RestartInterval <= 0 {
		params.RestartInterval = DefaultRestartInterval
	}

	if params.StopTimeout <= 0 {
		params.StopTimeout = DefaultStopTimeout
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Handle{
		decl:            decl,
		bin:             params.Bin,
		args:            args,
		maxRestarts:     params.MaxRestarts,
		restartInterval: params.RestartInterval,
		stopTimeout:     params.StopTimeout,
		log:             log.With(zap.String("stream", decl.Name)),
	}, nil
}

// Name returns the unique stream name of the handle.
func (h *Handle) Name() string {
	return h.decl.Name
}

// Declaration returns the stream declaration the handle was built from.
func (h *Handle) Declaration() stream.Declaration {
	return h.decl
}

// Start spawns the relay process. A spawn failure is not fatal: the
// handle is left without a live process and the error is returned for
// logging, leaving the stream a restart candidate.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.proc != nil && h.proc.Alive() {
		return ErrAlreadyRunning
	}

	h.log.Info("starting relay")
	h.log.Debug("relay command",
		zap.String("bin", h.bin),
		zap.Strings("args", h.args),
	)

	p, err := startProc(h.bin, h.args, h.log)
	if err != nil {
		h.proc = nil
		return fmt.Errorf("start relay %s: %w", h.decl.Name, err)
	}

	h.proc = p

	return nil
}

// Stop requests graceful termination and escalates to SIGKILL when the
// process has not exited within the stop timeout. The live process
// reference is cleared unconditionally. Stopping a handle without a
// live process is a no-op.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.proc
	h.proc = nil

	if p == nil || !p.Alive() {
		return nil
	}

	h.log.Info("stopping relay")

	p.Terminate()

	if err := p.Wait(h.stopTimeout); err == nil {
		return nil
	}

	h.log.Warn("relay did not exit in time, killing")

	p.Kill()

	return p.Wait(h.stopTimeout)
}

// Alive reports whether the relay process is currently running.
// It never blocks.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.proc != nil && h.proc.Alive()
}

// Restart consumes one restart attempt and spawns the process again.
// The attempt counts whether or not the spawn succeeds.
func (h *Handle) Restart() error {
	h.mu.Lock()
	h.restarts++
	h.mu.Unlock()

	return h.Start()
}

// Restarts returns the number of restart attempts consumed so far.
func (h *Handle) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.restarts
}

// MaxRestarts returns the restart ceiling for the stream.
func (h *Handle) MaxRestarts() int {
	return h.maxRestarts
}

// Exhausted reports whether the stream has been permanently parked.
func (h *Handle) Exhausted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.exhausted
}

// MarkExhausted parks the stream permanently. It returns true on the
// first call only, so the caller reports the event exactly once.
func (h *Handle) MarkExhausted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.exhausted {
		return false
	}

	h.exhausted = true

	return true
}

// Pid returns the pid of the live relay process, or 0 if there is none.
func (h *Handle) Pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.proc == nil {
		return 0
	}

	return h.proc.pid
}

// LastExit returns the exit error and stderr tail of the most recently
// spawned process, if it has exited. Used when logging a dead relay.
func (h *Handle) LastExit() (error, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.proc == nil || h.proc.Alive() {
		return nil, ""
	}

	return h.proc.ExitErr(), h.proc.StderrTail()
}
