// pitchnav - navigation controller for the pitch-guided robot
// Runs the audio, vision and control tasks against the arena simulator or
// a remote rig, and serves telemetry over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/teslashibe/go-pitchnav/internal/config"
	log "github.com/teslashibe/go-pitchnav/internal/log"
	"github.com/teslashibe/go-pitchnav/pkg/camera"
	"github.com/teslashibe/go-pitchnav/pkg/control"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
	"github.com/teslashibe/go-pitchnav/pkg/trace"
	"github.com/teslashibe/go-pitchnav/pkg/web"
)

type options struct {
	configPath string
	useGoCV    bool
}

func main() {
	cfg, opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Error("pitchnav failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the configuration and applies command line overrides.
func parseFlags() (config.Config, options, error) {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (overrides PITCHNAV_CONFIG)")
	mode := flag.String("mode", "", "Hardware: sim or rig")
	port := flag.String("port", "", "Telemetry HTTP port (overrides PITCHNAV_HTTP_PORT)")
	serialPort := flag.String("serial", "", "Trace serial port, e.g. /dev/ttyUSB0")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	spectra := flag.Bool("spectra", false, "Send spectrum frames on the trace port")
	flag.BoolVar(&opts.useGoCV, "gocv", false, "Capture rows from a local camera instead of the rig")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := trace.Ports()
		if err != nil {
			return config.Config{}, opts, err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, opts, err
	}

	if *mode != "" {
		cfg.Mode = *mode
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *serialPort != "" {
		cfg.Trace.SerialPort = *serialPort
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *spectra {
		cfg.Trace.Spectra = true
	}
	return cfg, opts, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := log.With("pitchnav")
	cells := control.NewCells()

	telemetry := web.NewServer(cfg.Web, cells, log.With("web"))
	telemetry.Settings = cfg
	telemetry.Camera = camera.NewManager(cfg.Camera)
	telemetry.LogLevel = &web.LogLevel{Get: log.Level, Set: log.SetLevel}

	var (
		hw  *hardware
		err error
	)
	switch cfg.Mode {
	case config.ModeRig:
		hw, err = newRigHardware(cfg, telemetry, opts.useGoCV)
	default:
		hw = newSimHardware(cfg)
	}
	if err != nil {
		return err
	}
	defer hw.Close()

	machine := nav.NewMachine(cfg.Nav, log.With("nav"))
	loop := control.NewLoop(cfg.Control, machine, hw.controller, cells, log.With("control"))
	loop.AddObserver(telemetry)
	if hw.observer != nil {
		loop.AddObserver(hw.observer)
	}

	listener, err := pitch.NewListener(cfg.Pitch, cells.Pitch, cells.AudioGate(), log.With("pitch"))
	if err != nil {
		return fmt.Errorf("pitch listener: %w", err)
	}
	tracker, err := line.NewTracker(cfg.Line, hw.capturer, cells.Demand, cells.Line, log.With("line"))
	if err != nil {
		return fmt.Errorf("line tracker: %w", err)
	}

	var sink *trace.Sink
	if cfg.Trace.SerialPort != "" {
		port, err := trace.OpenSerial(cfg.Trace.SerialPort, cfg.Trace.Baud)
		if err != nil {
			return err
		}
		defer port.Close()

		sink = trace.NewSink(port, log.With("trace"))
		sink.EnableSpectra(cfg.Trace.Spectra)
		loop.AddObserver(sink)
		logger.Info("tracing to serial port", "port", cfg.Trace.SerialPort, "baud", cfg.Trace.Baud)
	}

	listener.OnSpectrum = func(m []float64) {
		telemetry.OnSpectrum(m)
		if sink != nil {
			sink.OnSpectrum(m)
		}
	}

	telemetry.Stats = func() map[string]any {
		stats := map[string]any{
			"control": loop.Stats(),
			"pitch":   listener.Stats(),
			"line":    tracker.Stats(),
		}
		if sink != nil {
			stats["trace"] = map[string]uint64{"written": sink.Written(), "dropped": sink.Dropped()}
		}
		if hw.stats != nil {
			for k, v := range hw.stats() {
				stats[k] = v
			}
		}
		return stats
	}

	if err := hw.audio.Start(ctx); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	defer hw.audio.Stop()

	logger.Info("starting",
		"mode", cfg.Mode,
		"port", cfg.Web.Port,
		"run_id", telemetry.RunID(),
		"initial_wall", cfg.Nav.InitialWall.Number(),
	)

	var tasks taskGroup
	tasks.Go(ctx, cancel, "web", telemetry.Run)
	tasks.Go(ctx, cancel, "control", loop.Run)
	tasks.Go(ctx, cancel, "line", tracker.Run)
	tasks.Go(ctx, cancel, "pitch", func(ctx context.Context) error {
		return listener.Run(ctx, hw.audio.Stream())
	})
	if sink != nil {
		tasks.Go(ctx, cancel, "trace", sink.Run)
	}
	err = tasks.Wait()

	logger.Info("stopped", "ticks", loop.Stats().Ticks, "transitions", loop.Stats().Transitions)
	return err
}

// taskGroup runs the long-lived tasks. The first failure cancels the rest.
type taskGroup struct {
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (g *taskGroup) Go(ctx context.Context, cancel context.CancelFunc, name string, fn func(context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := fn(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			if ctx.Err() == nil {
				log.Warn("task exited early", "task", name)
				cancel()
			}
			return
		}
		g.once.Do(func() {
			g.err = fmt.Errorf("%s: %w", name, err)
			cancel()
		})
	}()
}

func (g *taskGroup) Wait() error {
	g.wg.Wait()
	return g.err
}
