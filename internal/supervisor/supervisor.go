package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/streamfleet/relayd/internal/metrics"
	"github.com/streamfleet/relayd/internal/relay"
	"github.com/streamfleet/relayd/internal/stream"
)

// Config describes the supervisor's runtime configuration.
type Config struct {
	// RTSPServer is the base URL relays publish to.
	RTSPServer string `conf:"rtsp_server"`

	// ConfigPath is the path of the streams declaration file.
	ConfigPath string `conf:"config_path"`

	// FFmpegBin is the name or path of the ffmpeg binary to invoke.
	FFmpegBin string `conf:"ffmpeg_bin"`

	// PollInterval is the monitoring loop tick interval.
	PollInterval time.Duration `conf:"poll_interval"`

	// MaxRestarts bounds automatic restart attempts per stream.
	MaxRestarts int `conf:"max_restarts"`

	// RestartInterval is the restart pacing constant of the policy.
	RestartInterval time.Duration `conf:"restart_interval"`

	// StopTimeout is the grace period before a stop escalates to SIGKILL.
	StopTimeout time.Duration `conf:"stop_timeout"`
}

// State describes a tracked stream as seen by the monitor loop.
type State string

const (
	StateRunning   State = "running"
	StateDead      State = "dead"
	StateExhausted State = "exhausted"
)

// StreamStatus is a point-in-time view of one tracked stream.
type StreamStatus struct {
	Name        string `json:"name"`
	State       State  `json:"state"`
	Pid         int    `json:"pid,omitempty"`
	Restarts    int    `json:"restarts"`
	MaxRestarts int    `json:"max_restarts"`
}

type Params struct {
	fx.In

	Config       Config
	Declarations []stream.Declaration
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

// Supervisor owns the mapping of stream name to relay handle and drives
// the monitoring loop that applies the bounded-restart policy. The
// tracking map is guarded by a mutex because status snapshots are
// served concurrently with the loop.
type Supervisor struct {
	cfg     Config
	decls   []stream.Declaration
	metrics *metrics.Metrics
	log     *zap.Logger

	mu      sync.Mutex
	order   []string
	handles map[string]*relay.Handle
}

func New(params Params) *Supervisor {
	return &Supervisor{
		cfg:     params.Config,
		decls:   params.Declarations,
		metrics: params.Metrics,
		log:     params.Log,
		handles: make(map[string]*relay.Handle),
	}
}

// StartAll builds a relay handle per declaration, in declaration order,
// and attempts to start each one. A declaration whose source type has
// no command template is logged and skipped without aborting its
// siblings. A spawn failure still registers the handle, leaving the
// stream a restart candidate for the monitor loop.
func (s *Supervisor) StartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, decl := range s.decls {
		h, err := relay.NewHandle(decl, relay.Params{
			Bin:             s.cfg.FFmpegBin,
			ServerBase:      s.cfg.RTSPServer,
			MaxRestarts:     s.cfg.MaxRestarts,
			RestartInterval: s.cfg.RestartInterval,
			StopTimeout:     s.cfg.StopTimeout,
			Log:             s.log,
		})
		if err != nil {
			s.log.Error("skipping stream",
				zap.String("stream", decl.Name),
				zap.Error(err),
			)
			continue
		}

		s.order = append(s.order, decl.Name)
		s.handles[decl.Name] = h

		if err := h.Start(); err != nil {
			s.log.Error("failed to start stream", zap.Error(err))
		}

		s.metrics.SetStreamUp(decl.Name, h.Alive())
	}

	s.metrics.SetTracked(len(s.handles))
}

// Run drives the monitoring loop until the context is cancelled. The
// loop has no other exit condition.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info("monitoring streams",
		zap.Int("streams", len(s.handles)),
		zap.Duration("interval", s.cfg.PollInterval),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick polls every tracked stream in declaration order and applies the
// restart policy: a dead stream consumes one restart attempt per tick
// until the ceiling is reached, after which it is parked permanently.
func (s *Supervisor) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		h := s.handles[name]

		if h.Alive() {
			s.metrics.SetStreamUp(name, true)
			continue
		}

		s.metrics.SetStreamUp(name, false)

		if h.Exhausted() {
			continue
		}

		if h.Restarts() >= h.MaxRestarts() {
			// reported once, the supervisor itself keeps running
			if h.MarkExhausted() {
				s.metrics.ObserveExhausted()
				s.log.Error("stream failed too many times, giving up",
					zap.String("stream", name),
					zap.Int("restarts", h.Restarts()),
				)
			}
			continue
		}

		exitErr, stderrTail := h.LastExit()
		s.log.Warn("stream died, attempting restart",
			zap.String("stream", name),
			zap.Int("attempt", h.Restarts()+1),
			zap.NamedError("exit", exitErr),
			zap.String("stderr", stderrTail),
		)

		s.metrics.ObserveRestart(name)

		if err := h.Restart(); err != nil {
			s.log.Error("restart failed", zap.Error(err))
		}
	}
}

// Cleanup stops every tracked relay in declaration order. Best effort:
// a failure stopping one stream does not prevent stopping the others.
func (s *Supervisor) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("cleaning up streams")

	for _, name := range s.order {
		if err := s.handles[name].Stop(); err != nil {
			s.log.Error("failed to stop stream",
				zap.String("stream", name),
				zap.Error(err),
			)
		}

		s.metrics.SetStreamUp(name, false)
	}
}

// Snapshot returns the current state of every tracked stream, in
// declaration order.
func (s *Supervisor) Snapshot() []StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]StreamStatus, 0, len(s.order))

	for _, name := range s.order {
		h := s.handles[name]

		state := StateDead
		switch {
		case h.Alive():
			state = StateRunning
		case h.Exhausted():
			state = StateExhausted
		}

		statuses = append(statuses, StreamStatus{
			Name:        name,
			State:       state,
			Pid:         h.Pid(),
			Restarts:    h.Restarts(),
			MaxRestarts: h.MaxRestarts(),
		})
	}

	return statuses
}
