// rig - remote sensor rig backed by the arena simulator
// Connects to a pitchnav controller running in rig mode, streams microphone
// blocks and range samples, and answers row captures from the simulated scene.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pitchnav/internal/config"
	log "github.com/teslashibe/go-pitchnav/internal/log"
	"github.com/teslashibe/go-pitchnav/pkg/audioio"
	"github.com/teslashibe/go-pitchnav/pkg/bridge"
	"github.com/teslashibe/go-pitchnav/pkg/camera"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/protocol"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
)

const pluckAmplitude = 0.5

func main() {
	configPath := flag.String("config", "", "YAML config file (overrides PITCHNAV_CONFIG)")
	url := flag.String("url", "", "Controller rig endpoint (overrides PITCHNAV_RIG_URL)")
	name := flag.String("name", "", "Rig name")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	if *url != "" {
		cfg.Rig.URL = *url
	}
	if *name != "" {
		cfg.Rig.Name = *name
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("rig failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := log.With("rig", "name", cfg.Rig.Name)
	sim := robot.NewSim(cfg.Sim.Arena)
	tone := audioio.NewToneSource(cfg.Audio, logger)
	defer tone.Close()
	plucker := audioio.NewPlucker(tone, cfg.Rig.Plucks, pluckAmplitude, logger)

	client, err := bridge.Dial(ctx, cfg.Rig.URL, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMotor(func(left, right int) {
		_ = sim.SetSpeeds(left, right)
		mm, rangeErr := sim.DistanceMM()
		if err := client.SendDistance(mm, rangeErr); err != nil {
			logger.Warn("send distance failed", "error", err)
		}
	})

	client.OnIndicator(func(c robot.Color) {
		_ = sim.SetColor(c)
		// the controller shows blue while it listens
		plucker.Listen(c == robot.Blue)
	})

	client.OnCapture(func(id uint64, ch line.Channel) {
		width := cfg.Sim.Arena.RowWidth
		if err := client.SendRow(id, ch, protocol.FormatRGB565, width, renderRGB565(sim)); err != nil {
			logger.Warn("send row failed", "id", id, "error", err)
		}
	})

	if err := client.SendHello(cfg.Rig.Name, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Sim.Arena.RowWidth); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	mm, rangeErr := sim.DistanceMM()
	if err := client.SendDistance(mm, rangeErr); err != nil {
		return fmt.Errorf("initial distance: %w", err)
	}

	if err := tone.Start(ctx); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	defer tone.Stop()

	go func() {
		var seq uint64
		for chunk := range tone.Stream() {
			seq++
			if err := client.SendAudio(chunk, seq); err != nil {
				logger.Warn("send audio failed", "seq", seq, "error", err)
				cancel()
				return
			}
		}
	}()

	logger.Info("rig running", "url", cfg.Rig.URL, "plucks", len(cfg.Rig.Plucks), "start", sim.Pose())
	err = client.Run(ctx)
	logger.Info("rig stopped", "pose", sim.Pose(), "ticks", sim.Ticks())
	return err
}

// renderRGB565 composes the three channel rows into one RGB565 row, the
// format the rig camera delivers.
func renderRGB565(sim *robot.Sim) []byte {
	r, g, b := sim.Row(line.Red), sim.Row(line.Green), sim.Row(line.Blue)
	out := make([]byte, 2*len(r))
	for i := range r {
		out[2*i], out[2*i+1] = camera.EncodeRGB565(r[i], g[i], b[i])
	}
	return out
}
