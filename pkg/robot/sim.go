package robot

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/line"
)

// ErrOutOfRange is returned when no wall lies within the sensor range.
var ErrOutOfRange = errors.New("robot: no wall within range")

// Pose is the robot position in arena coordinates. x runs from wall 1
// (x=0) to wall 3, y runs from wall 2 (y=0) to wall 4. Heading is in
// degrees: 0 faces wall 4, 90 wall 1, 180 wall 2, 270 wall 3, and a
// clockwise turn increases it.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Dir returns the unit vector the robot faces.
func (p Pose) Dir() (dx, dy float64) {
	rad := p.Heading * math.Pi / 180
	return -math.Sin(rad), math.Cos(rad)
}

// Segment is a painted line, visible in one color channel.
type Segment struct {
	X1      float64      `yaml:"x1" json:"x1"`
	Y1      float64      `yaml:"y1" json:"y1"`
	X2      float64      `yaml:"x2" json:"x2"`
	Y2      float64      `yaml:"y2" json:"y2"`
	Channel line.Channel `yaml:"channel" json:"channel"`
}

// SimConfig describes the arena, the robot and its camera.
type SimConfig struct {
	WidthMM  float64 `yaml:"width_mm" json:"width_mm"`
	HeightMM float64 `yaml:"height_mm" json:"height_mm"`

	MMPerStep   float64       `yaml:"mm_per_step" json:"mm_per_step"`
	WheelBaseMM float64       `yaml:"wheel_base_mm" json:"wheel_base_mm"`
	Tick        time.Duration `yaml:"tick" json:"tick"`
	MaxRangeMM  float64       `yaml:"max_range_mm" json:"max_range_mm"`

	LookaheadMM   float64 `yaml:"lookahead_mm" json:"lookahead_mm"`
	FieldOfViewMM float64 `yaml:"field_of_view_mm" json:"field_of_view_mm"`
	LineWidthMM   float64 `yaml:"line_width_mm" json:"line_width_mm"`
	RowWidth      int     `yaml:"row_width" json:"row_width"`

	Start Pose      `yaml:"start" json:"start"`
	Lines []Segment `yaml:"lines" json:"lines"`
}

// DefaultSimConfig returns an arena matching the default navigation
// calibration: a blue center line at 229 mm from walls 1 and 3, and one
// red line per string at its distance from wall 2.
func DefaultSimConfig() SimConfig {
	const center = 229
	cfg := SimConfig{
		WidthMM:   2 * center,
		HeightMM:  500,
		MMPerStep: 0.13,
		// 30 ticks of 10 ms at 1100 steps/s is a quarter turn
		WheelBaseMM:   4 * 1100 * 0.13 * 0.3 / math.Pi,
		Tick:          10 * time.Millisecond,
		MaxRangeMM:    2000,
		LookaheadMM:   50,
		FieldOfViewMM: 80,
		LineWidthMM:   20,
		RowWidth:      640,
		Start:         Pose{X: center, Y: 450, Heading: 180},
		Lines: []Segment{
			{X1: center, Y1: 0, X2: center, Y2: 500, Channel: line.Blue},
		},
	}
	for _, y := range []float64{106, 161, 216, 269, 317, 367} {
		cfg.Lines = append(cfg.Lines, Segment{X1: 0, Y1: y, X2: 2 * center, Y2: y, Channel: line.Red})
	}
	return cfg
}

// Validate checks that the simulator configuration is usable.
func (c SimConfig) Validate() error {
	if c.WidthMM <= 0 || c.HeightMM <= 0 {
		return fmt.Errorf("arena must have a positive size, got %vx%v", c.WidthMM, c.HeightMM)
	}
	if c.MMPerStep <= 0 || c.WheelBaseMM <= 0 || c.Tick <= 0 {
		return fmt.Errorf("mm_per_step, wheel_base_mm and tick must be positive")
	}
	if c.RowWidth <= 0 || c.FieldOfViewMM <= 0 {
		return fmt.Errorf("row_width and field_of_view_mm must be positive")
	}
	return nil
}

// Sim is a deterministic model of the robot in its arena. Every SetSpeeds
// call applies the command for one tick.
type Sim struct {
	cfg SimConfig

	mu     sync.Mutex
	pose   Pose
	left   int
	right  int
	color  Color
	ticks  uint64
	colors uint64
}

// NewSim places the robot at cfg.Start.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg, pose: cfg.Start}
}

// Config returns the simulator configuration.
func (s *Sim) Config() SimConfig { return s.cfg }

// SetSpeeds applies left/right wheel speeds for one tick.
func (s *Sim) SetSpeeds(left, right int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.left, s.right = left, right
	s.advance(s.cfg.Tick.Seconds())
	s.ticks++
	return nil
}

func (s *Sim) advance(dt float64) {
	vl := float64(s.left) * s.cfg.MMPerStep
	vr := float64(s.right) * s.cfg.MMPerStep

	omega := (vl - vr) / s.cfg.WheelBaseMM
	s.pose.Heading = math.Mod(s.pose.Heading+omega*dt*180/math.Pi+360, 360)

	v := (vl + vr) / 2
	dx, dy := s.pose.Dir()
	s.pose.X += v * dt * dx
	s.pose.Y += v * dt * dy
}

// DistanceMM returns the distance from the robot to the wall it faces.
func (s *Sim) DistanceMM() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dx, dy := s.pose.Dir()
	best := math.Inf(1)
	hit := func(t float64) {
		if t > 0 && t < best {
			best = t
		}
	}
	if dx < 0 {
		hit(-s.pose.X / dx)
	}
	if dx > 0 {
		hit((s.cfg.WidthMM - s.pose.X) / dx)
	}
	if dy < 0 {
		hit(-s.pose.Y / dy)
	}
	if dy > 0 {
		hit((s.cfg.HeightMM - s.pose.Y) / dy)
	}
	if best > s.cfg.MaxRangeMM {
		return 0, ErrOutOfRange
	}
	return best, nil
}

// SetColor records the indicator color.
func (s *Sim) SetColor(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = c
	s.colors++
	return nil
}

// Row renders the camera row for ch: a bright background with a dark dip
// wherever a line of that channel crosses the lookahead row.
func (s *Sim) Row(ch line.Channel) []uint8 {
	s.mu.Lock()
	pose := s.pose
	s.mu.Unlock()

	w := s.cfg.RowWidth
	row := make([]uint8, w)
	for i := range row {
		row[i] = 200
	}

	pxPerMM := float64(w) / s.cfg.FieldOfViewMM
	half := s.cfg.LineWidthMM / 2 * pxPerMM
	for _, seg := range s.cfg.Lines {
		if seg.Channel != ch {
			continue
		}
		lateral, ok := s.crossing(pose, seg)
		if !ok {
			continue
		}
		c := float64(w)/2 + lateral*pxPerMM
		lo := int(math.Max(0, c-half))
		hi := int(math.Min(float64(w), c+half))
		for i := lo; i < hi; i++ {
			row[i] = 20
		}
	}
	return row
}

// crossing returns where seg crosses the camera row, in mm to the right
// of the optical axis.
func (s *Sim) crossing(p Pose, seg Segment) (float64, bool) {
	dx, dy := p.Dir()
	rx, ry := -dy, dx

	ux, uy := seg.X2-seg.X1, seg.Y2-seg.Y1
	n := math.Hypot(ux, uy)
	if n == 0 {
		return 0, false
	}
	ux, uy = ux/n, uy/n

	den := rx*uy - ry*ux
	if math.Abs(den) < 1e-6 {
		return 0, false
	}
	ax := seg.X1 - p.X - s.cfg.LookaheadMM*dx
	ay := seg.Y1 - p.Y - s.cfg.LookaheadMM*dy
	lateral := (ax*uy - ay*ux) / den

	// point along the segment, must lie within it
	t := (ax*ry - ay*rx) / den
	if t < 0 || t > n {
		return 0, false
	}
	if math.Abs(lateral) > s.cfg.FieldOfViewMM/2 {
		return 0, false
	}
	return lateral, true
}

// Pose returns the robot pose.
func (s *Sim) Pose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// SetPose moves the robot.
func (s *Sim) SetPose(p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = p
}

// Speeds returns the last commanded wheel speeds.
func (s *Sim) Speeds() (left, right int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

// Color returns the last indicator color.
func (s *Sim) Color() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

// Ticks returns how many motor commands were applied.
func (s *Sim) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}
