package config

import (
	"time"

	"github.com/streamfleet/relayd/internal/server"
	"github.com/streamfleet/relayd/internal/supervisor"
	"github.com/streamfleet/relayd/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Supervisor is the stream supervisor configuration
	Supervisor supervisor.Config `conf:"supervisor"`

	// Http is the status server configuration
	Http server.HttpConfig `conf:"http"`
}

// DefaultConfig holds the defaults applied before file, env and cli
// sources are merged in.
var DefaultConfig = conf.DefaultConfig{
	"log_level":  "info",
	"log_format": "production",

	"supervisor.rtsp_server":      "rtsp://mediamtx:8554",
	"supervisor.config_path":      "/config/streams.yml",
	"supervisor.ffmpeg_bin":       "ffmpeg",
	"supervisor.poll_interval":    5 * time.Second,
	"supervisor.max_restarts":     5,
	"supervisor.restart_interval": 60 * time.Second,
	"supervisor.stop_timeout":     5 * time.Second,

	"http.host": "localhost",
	"http.port": 8080,
	"http.h2c":  false,
}
