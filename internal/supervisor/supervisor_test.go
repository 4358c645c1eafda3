package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streamfleet/relayd/internal/metrics"
	"github.com/streamfleet/relayd/internal/stream"
)

func stubBin(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	return path
}

func decl(name string, sourceType stream.SourceType) stream.Declaration {
	return stream.Declaration{
		Name:       name,
		Type:       sourceType,
		Input:      "rtmp://ingest/" + name,
		OutputPath: name,
	}
}

func newTestSupervisor(bin string, decls ...stream.Declaration) *Supervisor {
	return New(Params{
		Config: Config{
			RTSPServer:   "rtsp://mediamtx:8554",
			FFmpegBin:    bin,
			PollInterval: 10 * time.Millisecond,
			MaxRestarts:  2,
			StopTimeout:  200 * time.Millisecond,
		},
		Declarations: decls,
		Metrics:      metrics.New(),
		Log:          zap.NewNop(),
	})
}

func waitDead(t *testing.T, s *Supervisor, name string) {
	t.Helper()

	require.Eventually(t, func() bool {
		return !s.handles[name].Alive()
	}, time.Second, 5*time.Millisecond)
}

func TestStartAll_RegistersInDeclarationOrder(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "sleep 60"),
		decl("cam1", stream.SourceRTMP),
		decl("gate", stream.SourceRTSP),
	)
	defer s.Cleanup()

	s.StartAll()

	assert.Equal(t, []string{"cam1", "gate"}, s.order)
	assert.True(t, s.handles["cam1"].Alive())
	assert.True(t, s.handles["gate"].Alive())
}

func TestStartAll_SkipsUnsupportedSourceType(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "sleep 60"),
		decl("playlist", stream.SourceHLS),
		decl("cam1", stream.SourceRTMP),
	)
	defer s.Cleanup()

	s.StartAll()

	// the hls declaration has no command template: it is skipped,
	// its sibling still starts
	assert.Equal(t, []string{"cam1"}, s.order)
	assert.NotContains(t, s.handles, "playlist")
	assert.True(t, s.handles["cam1"].Alive())
}

func TestStartAll_SpawnFailureLeavesRestartCandidate(t *testing.T) {
	s := newTestSupervisor(filepath.Join(t.TempDir(), "missing-ffmpeg"),
		decl("cam1", stream.SourceRTMP),
	)

	s.StartAll()

	// the handle is registered despite the failed spawn,
	// so the monitor loop picks it up
	require.Contains(t, s.handles, "cam1")
	assert.False(t, s.handles["cam1"].Alive())

	s.tick()
	assert.Equal(t, 1, s.handles["cam1"].Restarts())
}

func TestTick_RestartsDeadStream(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "exit 1"),
		decl("cam1", stream.SourceRTMP),
	)

	s.StartAll()
	waitDead(t, s, "cam1")

	s.tick()

	assert.Equal(t, 1, s.handles["cam1"].Restarts())
	assert.False(t, s.handles["cam1"].Exhausted())
}

func TestTick_AliveStreamConsumesNoAttempts(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "sleep 60"),
		decl("cam1", stream.SourceRTMP),
	)
	defer s.Cleanup()

	s.StartAll()

	for i := 0; i < 3; i++ {
		s.tick()
	}

	assert.Equal(t, 0, s.handles["cam1"].Restarts())
}

func TestTick_ExhaustsAfterMaxRestarts(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "exit 1"),
		decl("cam1", stream.SourceRTMP),
	)

	s.StartAll()

	h := s.handles["cam1"]

	// each tick consumes one attempt until the ceiling is reached
	for i := 1; i <= 2; i++ {
		waitDead(t, s, "cam1")
		s.tick()
		assert.Equal(t, i, h.Restarts())
	}

	waitDead(t, s, "cam1")
	s.tick()
	assert.True(t, h.Exhausted())

	// further ticks never restart an exhausted stream
	s.tick()
	s.tick()
	assert.Equal(t, 2, h.Restarts())
}

func TestCleanup_StopsAllStreams(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "sleep 60"),
		decl("cam1", stream.SourceRTMP),
		decl("cam2", stream.SourceRTMP),
		decl("cam3", stream.SourceRTMP),
	)

	s.StartAll()

	for _, name := range s.order {
		require.True(t, s.handles[name].Alive())
	}

	s.Cleanup()

	for _, name := range s.order {
		assert.False(t, s.handles[name].Alive())
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "sleep 60"),
		decl("cam1", stream.SourceRTMP),
		decl("cam2", stream.SourceRTSP),
	)
	defer s.Cleanup()

	s.StartAll()

	statuses := s.Snapshot()
	require.Len(t, statuses, 2)

	assert.Equal(t, "cam1", statuses[0].Name)
	assert.Equal(t, StateRunning, statuses[0].State)
	assert.NotZero(t, statuses[0].Pid)

	assert.Equal(t, "cam2", statuses[1].Name)
	assert.Equal(t, 2, statuses[1].MaxRestarts)
}

func TestSnapshot_Exhausted(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "exit 1"),
		decl("cam1", stream.SourceRTMP),
	)

	s.StartAll()

	for i := 0; i < 3; i++ {
		waitDead(t, s, "cam1")
		s.tick()
	}

	statuses := s.Snapshot()
	require.Len(t, statuses, 1)
	assert.Equal(t, StateExhausted, statuses[0].State)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestSupervisor(stubBin(t, "sleep 60"))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor loop did not stop on cancellation")
	}
}
