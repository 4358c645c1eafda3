package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/streamfleet/relayd/app"
	"github.com/streamfleet/relayd/config"
	"github.com/streamfleet/relayd/internal/server"
	"github.com/streamfleet/relayd/internal/supervisor"
	"github.com/streamfleet/relayd/util/conf"
)

var (
	runCmdDescription = `The run command loads the stream declarations, starts one
	ffmpeg relay per stream and monitors them indefinitely,
	restarting failed relays up to the configured ceiling.

	The command blocks until it receives an interrupt or
	termination signal, then stops every relay and exits.`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Start and supervise all configured stream relays.",
		Description: runCmdDescription,
		Action:      runAction,
	}
)

func runAction(ctx *cli.Context) error {
	a, err := app.New(ctx)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	return a.Run(ctx.Context,
		supervisor.Module(),
		server.Module(cfg.Http),
	)
}

func init() {
	rootApp.Commands = append(rootApp.Commands, runCmd)
}
