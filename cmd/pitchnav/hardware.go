package main

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-pitchnav/internal/config"
	log "github.com/teslashibe/go-pitchnav/internal/log"
	"github.com/teslashibe/go-pitchnav/pkg/audioio"
	"github.com/teslashibe/go-pitchnav/pkg/bridge"
	"github.com/teslashibe/go-pitchnav/pkg/camera"
	"github.com/teslashibe/go-pitchnav/pkg/control"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
	"github.com/teslashibe/go-pitchnav/pkg/web"
)

// simExposure is how long a simulated row capture takes.
const simExposure = 5 * time.Millisecond

// pluckAmplitude is the simulated pluck level, a fraction of full scale.
const pluckAmplitude = 0.5

// hardware is what the tasks run against.
type hardware struct {
	controller robot.Controller
	capturer   line.Capturer
	audio      audioio.Source

	// observer, when set, follows the control loop.
	observer control.Observer
	stats    func() map[string]any
	closers  []func() error
}

func (h *hardware) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

// newSimHardware runs the robot in the simulated arena, plucking the
// configured strings whenever the robot listens.
func newSimHardware(cfg config.Config) *hardware {
	logger := log.With("sim")
	sim := robot.NewSim(cfg.Sim.Arena)
	tone := audioio.NewToneSource(cfg.Audio, logger)
	plucker := audioio.NewPlucker(tone, cfg.Sim.Plucks, pluckAmplitude, logger)

	return &hardware{
		controller: sim,
		capturer:   camera.NewSimCapturer(sim, simExposure),
		audio:      tone,
		observer:   &simObserver{sim: sim, plucker: plucker},
		stats: func() map[string]any {
			return map[string]any{
				"sim": map[string]any{
					"pose":             sim.Pose(),
					"ticks":            sim.Ticks(),
					"plucks_remaining": plucker.Remaining(),
				},
			}
		},
		closers: []func() error{tone.Close},
	}
}

// simObserver plucks on entry to the listening phase.
type simObserver struct {
	sim     *robot.Sim
	plucker *audioio.Plucker
}

func (o *simObserver) OnTransition(t nav.Transition) {
	if t.To == nav.Done {
		log.Info("navigation done", "pose", o.sim.Pose())
	}
}

func (o *simObserver) OnTick(snap nav.Snapshot) {
	o.plucker.Listen(snap.Phase.NeedsAudio())
}

// newRigHardware serves the rig endpoint on the telemetry server. With
// useGoCV, rows come from a local camera instead of the rig.
func newRigHardware(cfg config.Config, telemetry *web.Server, useGoCV bool) (*hardware, error) {
	logger := log.With("bridge")
	push := audioio.NewPushSource(cfg.Audio, logger)
	rig := bridge.NewServer(cfg.Bridge, push, logger)

	app := telemetry.App()
	rig.RegisterRoutes(app)
	rig.RegisterAPIRoutes(app.Group("/api"))

	h := &hardware{
		controller: rig,
		capturer:   rig,
		audio:      push,
		stats: func() map[string]any {
			return map[string]any{"bridge": rig.GetStats()}
		},
		closers: []func() error{push.Close},
	}

	if useGoCV {
		cam, err := camera.OpenGoCV(cfg.Camera, log.With("camera"))
		if err != nil {
			return nil, fmt.Errorf("open camera: %w", err)
		}
		h.capturer = cam
		h.closers = append(h.closers, cam.Close)
		telemetry.Camera.OnConfigChange = cam.Apply
	}
	return h, nil
}
