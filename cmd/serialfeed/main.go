// Command serialfeed reads "key: value" telemetry lines from a serial device
// and hands the decoded fields to a dashboard, NATS and the log.
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/luhtfiimanal/serialfeed/config"
)

type CLI struct {
	Config   string `short:"c" type:"existingfile" help:"Config file (YAML, JSON or CUE)."`
	LogLevel string `name:"log-level" enum:",debug,info,warn,error" default:"" help:"Override the configured log level."`

	Run    RunCmd    `cmd:"" help:"Read from a serial device."`
	Replay ReplayCmd `cmd:"" help:"Feed a capture file through the pipeline as if a device sent it."`
	Parse  ParseCmd  `cmd:"" help:"Print the fields of lines read from stdin or files."`
}

// load returns the config file's settings, or the defaults without one.
func (c *CLI) load() (*config.Config, error) {
	if c.Config == "" {
		return config.Default(), nil
	}
	return config.Load(c.Config)
}

func (c *CLI) logger(cfg *config.Config) (*slog.Logger, error) {
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})), nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("serialfeed"),
		kong.Description("Serial telemetry bridge."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
