package supervisor

import (
	"context"

	"go.uber.org/fx"

	"github.com/streamfleet/relayd/util/logging"
)

func Module() fx.Option {
	return fx.Module("supervisor",
		// rename logger for module
		logging.DecorateLogger("supervisor"),
		// provide supervisor
		fx.Provide(New),
		// tie supervisor to app lifecycle
		fx.Invoke(Register),
	)
}

// Register ties the supervisor to the application lifecycle. All relays
// are started before the app reports ready; on shutdown the monitoring
// loop winds down first, then every relay is stopped. Shutdown signals
// are delivered by the runtime as context cancellation, so no signal
// handler ever runs concurrently with the loop.
func Register(lc fx.Lifecycle, s *Supervisor) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.StartAll()

			go func() {
				defer close(done)
				s.Run(loopCtx)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()

			// wait for the loop to finish its current tick before
			// stopping relays, to avoid a restart-vs-stop race
			select {
			case <-done:
			case <-ctx.Done():
			}

			s.Cleanup()

			return nil
		},
	})
}
