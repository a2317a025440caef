// midibridge reads tab-separated sensor lines from a serial device, streams
// them to the UI over a WebSocket, and plays them as two MIDI notes.
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
	"github.com/spf13/pflag"

	"github.com/chase3718/serial-midi-bridge/internal/api"
	"github.com/chase3718/serial-midi-bridge/internal/bridge"
	"github.com/chase3718/serial-midi-bridge/internal/config"
	"github.com/chase3718/serial-midi-bridge/internal/events"
	"github.com/chase3718/serial-midi-bridge/internal/midiout"
	"github.com/chase3718/serial-midi-bridge/internal/serialport"
)

// logger is the process-wide structured logger. Safe to use before
// initLogger is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("midibridge", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address for commands, events and metrics")
	flagSet.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging (adds source location)")
	flagSet.StringVar(&cfg.Scaling, "scaling", cfg.Scaling, "value scaling: proportional (raw 0-1000) or clamp (raw 0-127)")
	flagSet.IntVar(&cfg.QueueCapacity, "queue", cfg.QueueCapacity, "records buffered between the serial and MIDI workers")
	flagSet.StringVar(&cfg.Port, "serial", cfg.Port, "serial device to start on launch (optional)")
	flagSet.StringSliceVar(&cfg.MIDIExclude, "midi-exclude", cfg.MIDIExclude, "skip MIDI outputs whose name contains any of these")
	listPorts := flagSet.Bool("list", false, "print the available serial ports and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	initLogger(cfg.Debug)

	if *listPorts {
		for _, p := range serialport.List(logger) {
			if p.USB != nil {
				fmt.Printf("%s\tusb %04x:%04x\t%s\t%s\n", p.Name, p.USB.VendorID, p.USB.ProductID, p.USB.Product, p.USB.SerialNumber)
			} else {
				fmt.Printf("%s\n", p.Name)
			}
		}
		return nil
	}

	logger.Info("midibridge starting",
		"addr", cfg.Addr,
		"scaling", cfg.Scaling,
		"queue", cfg.QueueCapacity,
		"baud", serialport.BaudRate,
		"serial", cfg.Port,
		"debug", cfg.Debug,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	midi, err := midiout.New(cfg.MIDIExclude, logger)
	if err != nil {
		return err
	}
	defer midi.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	broadcaster := events.NewBroadcaster()
	coord := bridge.NewCoordinator(bridge.Options{
		OpenSerial:    serialport.Open,
		Outputs:       midi.Outputs,
		Events:        broadcaster,
		Policy:        cfg.Policy(),
		QueueCapacity: cfg.QueueCapacity,
		Metrics:       bridge.NewMetrics(reg),
		Logger:        logger,
	})

	srv := api.NewServer(
		coord,
		func() []serialport.PortInfo { return serialport.List(logger) },
		events.NewHandler(broadcaster, logger),
		reg,
		logger,
	)
	server := &http.Server{Addr: cfg.Addr, Handler: srv.Handler()}

	if cfg.Port != "" {
		if _, err := coord.Start(cfg.Port); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		if err := coord.StopAndWait(stopCtx); err != nil {
			logger.Warn("pipeline did not stop in time", "err", err)
		}
		broadcaster.Close()
		_ = server.Shutdown(stopCtx)
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
