package robot

import (
	"math"
	"testing"

	"github.com/teslashibe/go-pitchnav/pkg/line"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSim_DistanceToFacedWall(t *testing.T) {
	cfg := DefaultSimConfig()
	s := NewSim(cfg)

	tests := []struct {
		heading float64
		want    float64
	}{
		{180, 450},               // wall 2
		{0, cfg.HeightMM - 450},  // wall 4
		{90, 229},                // wall 1
		{270, cfg.WidthMM - 229}, // wall 3
	}

	for _, tt := range tests {
		s.SetPose(Pose{X: 229, Y: 450, Heading: tt.heading})
		got, err := s.DistanceMM()
		if err != nil {
			t.Fatalf("heading %v: %v", tt.heading, err)
		}
		if !near(got, tt.want, 1e-6) {
			t.Errorf("heading %v: distance = %v, want %v", tt.heading, got, tt.want)
		}
	}
}

func TestSim_OutOfRange(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.MaxRangeMM = 100
	s := NewSim(cfg)
	if _, err := s.DistanceMM(); err != ErrOutOfRange {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}

func TestSim_QuarterTurnIn30Ticks(t *testing.T) {
	s := NewSim(DefaultSimConfig())

	for i := 0; i < 30; i++ {
		s.SetSpeeds(1100, -1100)
	}
	p := s.Pose()
	if !near(p.Heading, 270, 0.1) {
		t.Errorf("heading = %v, want ~270 after a clockwise quarter turn", p.Heading)
	}
	if !near(p.X, 229, 1e-6) || !near(p.Y, 450, 1e-6) {
		t.Errorf("spinning moved the robot to %+v", p)
	}

	for i := 0; i < 60; i++ {
		s.SetSpeeds(-1100, 1100)
	}
	if p := s.Pose(); !near(p.Heading, 90, 0.2) {
		t.Errorf("heading = %v, want ~90 after a counter-clockwise half turn", p.Heading)
	}
}

func TestSim_DrivesForward(t *testing.T) {
	s := NewSim(DefaultSimConfig())
	before, _ := s.DistanceMM()

	// one second at 400 steps/s and 0.13 mm/step
	for i := 0; i < 100; i++ {
		s.SetSpeeds(400, 400)
	}
	after, _ := s.DistanceMM()
	if !near(before-after, 52, 1e-6) {
		t.Errorf("moved %v mm, want 52", before-after)
	}
	if s.Ticks() != 100 {
		t.Errorf("Ticks = %d", s.Ticks())
	}
}

func TestSim_RowShowsLineOfChannel(t *testing.T) {
	cfg := DefaultSimConfig()
	s := NewSim(cfg)
	est, err := line.NewEstimator(line.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	r, _ := est.Estimate(s.Row(line.Blue))
	if !r.Found || r.OffsetPx < -5 || r.OffsetPx > 5 {
		t.Errorf("on the center line: %+v", r)
	}

	r, _ = est.Estimate(s.Row(line.Red))
	if r.Found {
		t.Errorf("string lines are parallel to the row when facing wall 2: %+v", r)
	}

	// 10 mm left of the line, it appears on the right
	s.SetPose(Pose{X: 219, Y: 450, Heading: 180})
	r, _ = est.Estimate(s.Row(line.Blue))
	wantPx := 10 * float64(cfg.RowWidth) / cfg.FieldOfViewMM
	if !r.Found || !near(float64(r.OffsetPx), wantPx, 4) {
		t.Errorf("offset = %+v, want ~%v px", r, wantPx)
	}
}

func TestSim_RowFacingWall3SeesStringLine(t *testing.T) {
	s := NewSim(DefaultSimConfig())
	s.SetPose(Pose{X: 229, Y: 219, Heading: 270})

	est, _ := line.NewEstimator(line.DefaultConfig())
	r, _ := est.Estimate(s.Row(line.Red))
	if !r.Found || r.OffsetPx >= 0 {
		t.Errorf("line at y=216 should appear left when facing wall 3: %+v", r)
	}
}

func TestSim_Color(t *testing.T) {
	s := NewSim(DefaultSimConfig())
	s.SetColor(Yellow)
	if s.Color() != Yellow {
		t.Errorf("Color = %v", s.Color())
	}
	if Yellow.String() != "#ffff00" || !Off.IsOff() {
		t.Error("color helpers mismatch")
	}
}
