package app

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/streamfleet/relayd/config"
	"github.com/streamfleet/relayd/internal/metrics"
	"github.com/streamfleet/relayd/internal/shell"
	"github.com/streamfleet/relayd/internal/stream"
	"github.com/streamfleet/relayd/internal/supervisor"
	"github.com/streamfleet/relayd/util/conf"
	"github.com/streamfleet/relayd/util/logging"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(cfg),
		// provide supervisor config
		fx.Supply(cfg.Supervisor),
		// provide metrics
		fx.Provide(metrics.New),
		// provide stream declarations
		fx.Provide(loadDeclarations),
	)

	return shell.New(log, sharedModule), nil
}

// loadDeclarations reads the streams file. A load failure aborts app
// startup before any stream is started.
func loadDeclarations(cfg supervisor.Config, log *zap.Logger) ([]stream.Declaration, error) {
	return stream.Load(cfg.ConfigPath, log.Named("config"))
}
