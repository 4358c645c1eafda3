package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/streamfleet/relayd/config"
	"github.com/streamfleet/relayd/internal/shell"
	"github.com/streamfleet/relayd/util/conf"
	"github.com/streamfleet/relayd/util/logging"
)

var (
	appName  = "relayd"
	appUsage = `A supervisor for a fleet of ffmpeg relay processes, converting
and forwarding file, RTSP and RTMP sources into a unified RTSP
server output.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "app-config",
				Usage:   "path to an optional application config file.",
				EnvVars: []string{"RELAYD_CONFIG"},
			},
			// relay flags
			&cli.StringFlag{
				Name:     "rtsp-server",
				Usage:    "base URL of the RTSP server streams are published to.",
				Aliases:  []string{"s"},
				Category: "relay",
				EnvVars:  []string{"RTSP_SERVER"},
			},
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path of the stream declarations file.",
				Aliases:  []string{"c"},
				Category: "relay",
				EnvVars:  []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:     "ffmpeg",
				Usage:    "name or path of the ffmpeg binary to invoke.",
				Category: "relay",
				EnvVars:  []string{"FFMPEG_BIN"},
			},
			// status server flags
			&cli.StringFlag{
				Name:     "http-host",
				Usage:    "the host the status server listens on.",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "http-port",
				Usage:    "the port the status server listens on.",
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "http-h2c",
				Usage:    "enable HTTP/2 cleartext upgrade on the status server.",
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using defaults, file and env
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Defaults:   config.DefaultConfig,
				EnvPrefix:  "RELAYD_",
				DotEnvFile: ".env",
				FileName:   ctx.String("app-config"),
				Log:        log,
			})
			if err != nil {
				return err
			}

			// cli flags take precedence over file and env
			applyFlagOverrides(ctx, &cfg)

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

func applyFlagOverrides(ctx *cli.Context, cfg *config.Config) {
	if v := ctx.String("rtsp-server"); v != "" {
		cfg.Supervisor.RTSPServer = v
	}

	if v := ctx.String("config"); v != "" {
		cfg.Supervisor.ConfigPath = v
	}

	if v := ctx.String("ffmpeg"); v != "" {
		cfg.Supervisor.FFmpegBin = v
	}

	if ctx.IsSet("http-host") {
		cfg.Http.Host = ctx.String("http-host")
	}

	if ctx.IsSet("http-port") {
		cfg.Http.Port = ctx.Int("http-port")
	}

	if ctx.IsSet("http-h2c") {
		cfg.Http.H2c = ctx.Bool("http-h2c")
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return
	}

	// if app exited with an ExitError, exit with the given code
	if exitErr, ok := err.(*shell.ExitError); ok {
		os.Exit(exitErr.ExitCode)
	}

	fmt.Printf("exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	os.Exit(1)
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
