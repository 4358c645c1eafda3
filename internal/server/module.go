package server

import (
	"go.uber.org/fx"

	"github.com/streamfleet/relayd/util/logging"
)

func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		// rename logger for module
		logging.DecorateLogger("server"),
		// provide config
		fx.Supply(config),
		// provide routes
		fx.Provide(NewHealthRoute),
		fx.Provide(NewStreamsRoute),
		fx.Provide(NewMetricsRoute),
		// provide server
		fx.Provide(NewLifecycleServer),
		// invoke server
		fx.Invoke(func(*HttpServer) {}),
	)
}
