package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/luhtfiimanal/serialfeed/config"
	"github.com/luhtfiimanal/serialfeed/dashboard"
	"github.com/luhtfiimanal/serialfeed/feed"
	"github.com/luhtfiimanal/serialfeed/sink"
	"github.com/luhtfiimanal/serialfeed/sink/natssink"
	"github.com/luhtfiimanal/serialfeed/transport"
)

// Outputs are the flags shared by run and replay.
type Outputs struct {
	HTTPAddr  string `name:"http-addr" help:"Serve the dashboard on this address."`
	NATSURL   string `name:"nats-url" help:"Publish fields to this NATS server."`
	NoConnect bool   `name:"no-connect" help:"Wait for the dashboard's connect button instead of connecting at start."`
}

func (o Outputs) apply(cfg *config.Config) {
	if o.HTTPAddr != "" {
		cfg.HTTP.Addr = o.HTTPAddr
	}
	if o.NATSURL != "" {
		cfg.NATS.URL = o.NATSURL
	}
}

type RunCmd struct {
	Device string `short:"d" help:"Serial device, e.g. /dev/ttyUSB0."`
	Driver string `enum:",termios,portable" default:"" help:"Serial driver."`
	Baud   int    `help:"Baud rate."`
	Outputs `embed:""`
}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	if r.Device != "" {
		cfg.Device = r.Device
	}
	if r.Driver != "" {
		cfg.Driver = r.Driver
	}
	if r.Baud != 0 {
		cfg.BaudRate = r.Baud
	}
	r.Outputs.apply(cfg)
	if cfg.Device == "" {
		return fmt.Errorf("%w: no device given", config.ErrInvalid)
	}

	logger, err := cli.logger(cfg)
	if err != nil {
		return err
	}
	t, err := transport.ForDriver(cfg.Driver, cfg.Device, cfg.BaudRate)
	if err != nil {
		return err
	}
	return serve(t, cfg, r.Outputs, logger)
}

type ReplayCmd struct {
	File     string        `arg:"" type:"existingfile" help:"Capture file."`
	Chunk    int           `default:"0" help:"Bytes per read; 0 reads as much as fits."`
	Interval time.Duration `default:"0s" help:"Pause between reads."`
	Outputs `embed:""`
}

func (r *ReplayCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	r.Outputs.apply(cfg)
	logger, err := cli.logger(cfg)
	if err != nil {
		return err
	}
	return serve(transport.Replay{Path: r.File, ChunkSize: r.Chunk, Interval: r.Interval}, cfg, r.Outputs, logger)
}

// serve runs one pipeline until interrupted. Without a dashboard it also
// returns when the generation ends.
func serve(t feed.Transport, cfg *config.Config, out Outputs, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := feed.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	table := sink.NewTable()
	sinks := sink.Fanout{table, sink.Logger(logger.With("component", "fields"))}
	if cfg.NATS.URL != "" {
		nc, err := natssink.Connect(cfg.NATS.URL, logger.With("component", "natssink"))
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("drain nats", "error", err)
			}
		}()
		sinks = append(sinks, natssink.New(nc, cfg.NATS.Subject, logger.With("component", "natssink")))
		logger.Info("publishing to nats", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	ctrl := feed.New(t, sinks,
		feed.WithLogger(logger.With("component", "feed")),
		feed.WithMetrics(metrics),
		feed.WithReadBuffer(cfg.ReadBuffer),
		feed.WithMaxLine(cfg.MaxLine()),
		feed.WithOverflowPolicy(cfg.OverflowPolicy()),
	)

	var dash *dashboard.Server
	if cfg.HTTP.Addr != "" {
		dash = dashboard.New(ctrl, table,
			dashboard.WithLogger(logger.With("component", "dashboard")),
			dashboard.WithGatherer(reg),
		)
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: dash, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("listening", "address", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", "error", err)
				stop()
			}
		}()
		defer func() {
			dash.Close()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if !out.NoConnect || dash == nil {
		if err := ctrl.Connect(ctx); err != nil {
			if dash == nil {
				return err
			}
			logger.Warn("initial connect failed; use the dashboard to retry", "error", err)
		}
	}

	if dash == nil {
		select {
		case <-ctx.Done():
		case <-ctrl.Done():
		}
	} else {
		<-ctx.Done()
	}

	if err := ctrl.Disconnect(context.Background()); err != nil && !errors.Is(err, feed.ErrNotConnected) {
		logger.Warn("disconnect", "error", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return ctrl.Err()
}
